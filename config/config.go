// Package config loads the proxy's process-wide settings from a YAML
// file, grounded on dmitrymodder-minewire's main.go (a flat struct
// decoded with gopkg.in/yaml.v3 from a single server.yaml), kept
// deliberately separate from the JSON recordings/bot-settings
// persistence in tasks and domain/recording per spec section 6.
package config

import (
	"fmt"
	"math/big"
	"net"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"otmitm/crypto/rsautil"
)

// Config is the complete set of operator-tunable process settings.
type Config struct {
	// LoginListenAddr and GameListenAddr are this proxy's local
	// listening addresses for the two OT listener roles.
	LoginListenAddr string `yaml:"login_listen_addr"`
	GameListenAddr  string `yaml:"game_listen_addr"`

	// LoginUpstreamAddr and GameUpstreamAddr are the real game
	// server's addresses the proxy dials through to.
	LoginUpstreamAddr string `yaml:"login_upstream_addr"`
	GameUpstreamAddr  string `yaml:"game_upstream_addr"`

	// ServerIPToHide is rewritten to 127.0.0.1 in the login reply so
	// the client reconnects to this proxy's game listener instead of
	// talking to the real server directly.
	ServerIPToHide string `yaml:"server_ip_to_hide"`

	// FallbackRSAKeyHex, if set, is a second hex-encoded modulus:private-
	// exponent pair (colon-separated) tried after the compiled-in
	// default key when extracting the login XTEA key.
	FallbackRSAKeyHex string `yaml:"fallback_rsa_key_hex"`

	// LoginTimeoutSeconds bounds how long a session waits for the XTEA
	// key to be captured before the relay tears it down (spec section 5).
	LoginTimeoutSeconds int `yaml:"login_timeout_seconds"`

	// RecordingsDir holds one JSON file per named recording.
	RecordingsDir string `yaml:"recordings_dir"`
	// SettingsPath is the bot_settings.json path (task enabled flags).
	SettingsPath string `yaml:"settings_path"`
	// TasksConfigDir is fsnotify-watched for on-disk task parameter edits.
	TasksConfigDir string `yaml:"tasks_config_dir"`

	// DashboardAddr, if non-empty, starts the HTTP+WebSocket dashboard
	// (C12) on this address.
	DashboardAddr string `yaml:"dashboard_addr"`

	// BridgeSocketPath, if non-empty, starts the external creature-feed
	// listener (C14) on this Unix domain socket path.
	BridgeSocketPath string `yaml:"bridge_socket_path"`

	// MemoryPatch configures the outward process-memory patcher (C13).
	MemoryPatch MemoryPatchConfig `yaml:"memory_patch"`
}

// MemoryPatchConfig controls the optional client-process memory scan.
type MemoryPatchConfig struct {
	Enabled        bool   `yaml:"enabled"`
	ProcessName    string `yaml:"process_name"`
	ServerIPToHide string `yaml:"server_ip_to_hide"`
}

// Default returns the built-in defaults, overridden by whatever a
// loaded YAML file specifies.
func Default() Config {
	return Config{
		LoginListenAddr:     "127.0.0.1:7171",
		GameListenAddr:      "127.0.0.1:7172",
		LoginTimeoutSeconds: 120,
		RecordingsDir:       "recordings",
		SettingsPath:        "bot_settings.json",
		TasksConfigDir:      "tasks.d",
	}
}

// Load reads and parses a YAML config file at path, starting from
// Default() so any field the file omits keeps its built-in value.
func Load(path string) (Config, error) {
	cfg := Default()
	f, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: invalid %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate checks invariants Load cannot express as YAML shape alone:
// required addresses, and that ServerIPToHide (if set) parses as an
// IPv4 address.
func (c Config) Validate() error {
	if c.LoginListenAddr == "" || c.GameListenAddr == "" {
		return fmt.Errorf("config: login_listen_addr and game_listen_addr are required")
	}
	if c.LoginUpstreamAddr == "" || c.GameUpstreamAddr == "" {
		return fmt.Errorf("config: login_upstream_addr and game_upstream_addr are required")
	}
	if c.ServerIPToHide != "" {
		if net.ParseIP(c.ServerIPToHide).To4() == nil {
			return fmt.Errorf("config: server_ip_to_hide %q is not a valid IPv4 address", c.ServerIPToHide)
		}
	}
	return nil
}

// ServerIP parses ServerIPToHide, returning nil if unset.
func (c Config) ServerIP() net.IP {
	if c.ServerIPToHide == "" {
		return nil
	}
	return net.ParseIP(c.ServerIPToHide).To4()
}

// LoginTimeout returns LoginTimeoutSeconds as a time.Duration.
func (c Config) LoginTimeout() time.Duration {
	return time.Duration(c.LoginTimeoutSeconds) * time.Second
}

// RSAKeys returns the default OTClient key followed by the configured
// fallback key (if any), in the order login.ExtractKey should try
// them, per spec section 4.5's "default and an optional fallback key".
func (c Config) RSAKeys() ([]rsautil.Key, error) {
	keys := []rsautil.Key{rsautil.DefaultKey()}
	if c.FallbackRSAKeyHex == "" {
		return keys, nil
	}
	parts := strings.SplitN(c.FallbackRSAKeyHex, ":", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("config: fallback_rsa_key_hex must be modulus:exponent")
	}
	n, ok := new(big.Int).SetString(parts[0], 16)
	if !ok {
		return nil, fmt.Errorf("config: fallback_rsa_key_hex modulus is not valid hex")
	}
	d, ok := new(big.Int).SetString(parts[1], 16)
	if !ok {
		return nil, fmt.Errorf("config: fallback_rsa_key_hex exponent is not valid hex")
	}
	keys = append(keys, rsautil.Key{N: n, E: big.NewInt(rsautil.PublicExponent), D: d})
	return keys, nil
}
