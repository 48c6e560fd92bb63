package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadAppliesDefaultsForOmittedFields(t *testing.T) {
	path := writeConfig(t, `
login_upstream_addr: "1.2.3.4:7171"
game_upstream_addr: "1.2.3.4:7172"
server_ip_to_hide: "1.2.3.4"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.LoginListenAddr != Default().LoginListenAddr {
		t.Errorf("LoginListenAddr = %q, want default %q", cfg.LoginListenAddr, Default().LoginListenAddr)
	}
	if cfg.RecordingsDir != "recordings" {
		t.Errorf("RecordingsDir = %q, want recordings", cfg.RecordingsDir)
	}
}

func TestLoadRejectsInvalidServerIP(t *testing.T) {
	path := writeConfig(t, `
login_upstream_addr: "1.2.3.4:7171"
game_upstream_addr: "1.2.3.4:7172"
server_ip_to_hide: "not-an-ip"
`)
	if _, err := Load(path); err == nil {
		t.Fatal("Load() error = nil, want error for invalid server_ip_to_hide")
	}
}

func TestLoadRequiresUpstreamAddrs(t *testing.T) {
	path := writeConfig(t, `login_listen_addr: "127.0.0.1:7171"`)
	if _, err := Load(path); err == nil {
		t.Fatal("Load() error = nil, want error for missing upstream addrs")
	}
}

func TestRSAKeysDefaultsToDefaultKeyOnly(t *testing.T) {
	cfg := Default()
	keys, err := cfg.RSAKeys()
	if err != nil {
		t.Fatalf("RSAKeys() error = %v", err)
	}
	if len(keys) != 1 {
		t.Errorf("len(keys) = %d, want 1", len(keys))
	}
}

func TestRSAKeysParsesFallback(t *testing.T) {
	cfg := Default()
	cfg.FallbackRSAKeyHex = "AB:CD"
	keys, err := cfg.RSAKeys()
	if err != nil {
		t.Fatalf("RSAKeys() error = %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("len(keys) = %d, want 2", len(keys))
	}
	if keys[1].N.Text(16) != "ab" || keys[1].D.Text(16) != "cd" {
		t.Errorf("fallback key = N:%s D:%s, want ab/cd", keys[1].N.Text(16), keys[1].D.Text(16))
	}
}

func TestRSAKeysRejectsMalformedFallback(t *testing.T) {
	cfg := Default()
	cfg.FallbackRSAKeyHex = "not-colon-separated"
	if _, err := cfg.RSAKeys(); err == nil {
		t.Fatal("RSAKeys() error = nil, want error for malformed fallback key")
	}
}
