package tasks

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"otmitm/application/bot"
	"otmitm/domain/world"
)

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}

type noopInjector struct{}

func (noopInjector) InjectToServer([]byte) {}
func (noopInjector) InjectToClient([]byte) {}

type fakeTask struct {
	name    string
	started chan struct{}
}

func (f *fakeTask) Name() string { return f.name }
func (f *fakeTask) Run(ctx context.Context, bc *bot.Context) error {
	close(f.started)
	<-ctx.Done()
	return ctx.Err()
}

func newTestHost(t *testing.T) (*Host, *SettingsManager) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bot_settings.json")
	sm := NewSettingsManager(path)
	bc := &bot.Context{World: world.New(), Injector: noopInjector{}, Log: nopLogger{}}
	return NewHost(nopLogger{}, bc, sm), sm
}

func TestToggleStartsAndStopsTask(t *testing.T) {
	h, _ := newTestHost(t)
	started := make(chan struct{})
	if err := h.Register("heal", func() (Task, error) {
		return &fakeTask{name: "heal", started: started}, nil
	}); err != nil {
		t.Fatal(err)
	}

	if err := h.Toggle("heal", true, true); err != nil {
		t.Fatalf("Toggle(on) error = %v", err)
	}
	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("task did not start after Toggle(on)")
	}

	states := h.List()
	if len(states) != 1 || !states[0].Enabled || !states[0].Running {
		t.Errorf("List() = %+v, want enabled+running", states)
	}

	if err := h.Toggle("heal", false, true); err != nil {
		t.Fatalf("Toggle(off) error = %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	states = h.List()
	if states[0].Running {
		t.Error("task still running after Toggle(off)")
	}
}

func TestToggleDoesNotStartWithoutSession(t *testing.T) {
	h, _ := newTestHost(t)
	started := make(chan struct{})
	h.Register("heal", func() (Task, error) {
		return &fakeTask{name: "heal", started: started}, nil
	})

	h.Toggle("heal", true, false)
	select {
	case <-started:
		t.Fatal("task started despite no connected session")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestStartAllEnabledIsIdempotent(t *testing.T) {
	h, sm := newTestHost(t)
	sm.SetEnabled("heal", true)

	started := make(chan struct{}, 5)
	h.Register("heal", func() (Task, error) {
		return &fakeTask{name: "heal", started: startedSignal(started)}, nil
	})

	h.StartAllEnabled()
	h.StartAllEnabled() // second call must be a no-op

	time.Sleep(50 * time.Millisecond)
	if len(started) != 1 {
		t.Errorf("len(started) = %d, want exactly 1 start", len(started))
	}
}

func startedSignal(ch chan struct{}) chan struct{} {
	out := make(chan struct{})
	go func() {
		<-out
		select {
		case ch <- struct{}{}:
		default:
		}
	}()
	return out
}

func TestRestartReloadsViaFactory(t *testing.T) {
	h, _ := newTestHost(t)
	calls := 0
	h.Register("heal", func() (Task, error) {
		calls++
		return &fakeTask{name: "heal", started: make(chan struct{})}, nil
	})

	h.Toggle("heal", true, true)
	time.Sleep(20 * time.Millisecond)
	if err := h.Restart("heal"); err != nil {
		t.Fatalf("Restart() error = %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if calls < 2 {
		t.Errorf("factory calls = %d, want >= 2 (initial start + restart)", calls)
	}
}
