package supervisor

import (
	"testing"

	"otmitm/config"
)

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.LoginListenAddr = "127.0.0.1:0"
	cfg.GameListenAddr = "127.0.0.1:0"
	cfg.LoginUpstreamAddr = "127.0.0.1:17171"
	cfg.GameUpstreamAddr = "127.0.0.1:17172"
	cfg.RecordingsDir = t.TempDir()
	cfg.SettingsPath = cfg.RecordingsDir + "/bot_settings.json"
	cfg.TasksConfigDir = t.TempDir()
	return cfg
}

func TestNewWiresControllerAndStateProvider(t *testing.T) {
	s, err := New(testConfig(t), nopLogger{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	st := s.BuildState()
	if st.Connected {
		t.Error("BuildState().Connected = true before any session, want false")
	}
	if len(st.Actions) != 3 {
		t.Errorf("BuildState().Actions = %d entries, want 3 (healing, combat, cavebot)", len(st.Actions))
	}
}

func TestAttackSetsWorldTargetID(t *testing.T) {
	s, err := New(testConfig(t), nopLogger{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := s.Attack(0x10000042); err != nil {
		t.Fatalf("Attack() error = %v", err)
	}
	if got := s.world.AttackTargetID(); got != 0x10000042 {
		t.Errorf("world.AttackTargetID() = %#x, want 0x10000042", got)
	}
}

func TestStartRecordingThenStopRecordingPersists(t *testing.T) {
	cfg := testConfig(t)
	s, err := New(cfg, nopLogger{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := s.StartRecording("route-test"); err != nil {
		t.Fatalf("StartRecording() error = %v", err)
	}
	if err := s.StopRecording(); err != nil {
		t.Fatalf("StopRecording() error = %v", err)
	}

	names, err := s.ListRecordings()
	if err != nil {
		t.Fatalf("ListRecordings() error = %v", err)
	}
	found := false
	for _, n := range names {
		if n == "route-test" {
			found = true
		}
	}
	if !found {
		t.Errorf("ListRecordings() = %v, want to include route-test", names)
	}
}

func TestToggleActionUnknownNameErrors(t *testing.T) {
	s, err := New(testConfig(t), nopLogger{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := s.ToggleAction("does-not-exist", true); err == nil {
		t.Error("ToggleAction() error = nil, want error for unknown task")
	}
}
