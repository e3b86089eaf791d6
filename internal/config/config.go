// Package config loads briefq daemon configuration from a YAML file,
// falling back to defaults when the file is absent.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultAddr              = "127.0.0.1:7341"
	defaultHeartbeatTimeout  = 60 * time.Second
	defaultHeartbeatInterval = 10 * time.Second
	defaultPollInterval      = 5 * time.Second
	defaultSweepInterval     = 30 * time.Second
	defaultBusyTimeoutMS     = 5000
)

type Config struct {
	// Addr is the TCP listen address for the HTTP API.
	Addr string `yaml:"addr"`
	// SocketPath optionally exposes the API on a unix socket as well.
	SocketPath string `yaml:"socket_path"`
	// DBPath is the SQLite database file. Parent directories are created
	// on first use.
	DBPath string `yaml:"db_path"`
	// StatusDir receives one markdown projection file per date.
	StatusDir string `yaml:"status_dir"`
	// KeysFile is the bearer-key file for API auth.
	KeysFile string `yaml:"keys_file"`

	// HeartbeatTimeoutSeconds is how long an agent may go silent before its
	// in-flight work becomes reclaimable.
	HeartbeatTimeoutSeconds int `yaml:"heartbeat_timeout_seconds"`
	// HeartbeatIntervalSeconds is the interval workers assert liveness on.
	HeartbeatIntervalSeconds int `yaml:"heartbeat_interval_seconds"`
	// PollIntervalSeconds is the interval workers poll for claimable work on.
	PollIntervalSeconds int `yaml:"poll_interval_seconds"`
	// SweepIntervalSeconds is the background reclaim pass interval. Zero
	// disables the sweeper; claim-time reclamation still runs regardless.
	SweepIntervalSeconds int `yaml:"sweep_interval_seconds"`
	// BusyTimeoutMS is the SQLite busy timeout, so lock contention surfaces
	// as a retryable error rather than a hang.
	BusyTimeoutMS int `yaml:"busy_timeout_ms"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	dataDir := defaultDataDir()
	return Config{
		Addr:                     defaultAddr,
		DBPath:                   filepath.Join(dataDir, "briefq.db"),
		StatusDir:                filepath.Join(dataDir, "status"),
		KeysFile:                 filepath.Join(dataDir, "briefq.keys.yaml"),
		HeartbeatTimeoutSeconds:  int(defaultHeartbeatTimeout / time.Second),
		HeartbeatIntervalSeconds: int(defaultHeartbeatInterval / time.Second),
		PollIntervalSeconds:      int(defaultPollInterval / time.Second),
		SweepIntervalSeconds:     int(defaultSweepInterval / time.Second),
		BusyTimeoutMS:            defaultBusyTimeoutMS,
	}
}

// Load reads the config file at path. A missing file yields Default().
func Load(path string) (Config, error) {
	cfg := Default()
	path = strings.TrimSpace(path)
	if path == "" {
		path = ResolvePath()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ResolvePath returns the config file location, honoring BRIEFQ_CONFIG.
func ResolvePath() string {
	if v := strings.TrimSpace(os.Getenv("BRIEFQ_CONFIG")); v != "" {
		return v
	}
	return filepath.Join(defaultDataDir(), "briefq.yaml")
}

func (c Config) validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return errors.New("config: addr required")
	}
	if strings.TrimSpace(c.DBPath) == "" {
		return errors.New("config: db_path required")
	}
	if c.HeartbeatTimeoutSeconds <= 0 {
		return errors.New("config: heartbeat_timeout_seconds must be positive")
	}
	if c.HeartbeatIntervalSeconds <= 0 {
		return errors.New("config: heartbeat_interval_seconds must be positive")
	}
	if c.HeartbeatIntervalSeconds >= c.HeartbeatTimeoutSeconds {
		return errors.New("config: heartbeat interval must be shorter than the timeout")
	}
	if c.PollIntervalSeconds <= 0 {
		return errors.New("config: poll_interval_seconds must be positive")
	}
	return nil
}

// EnsureDirectories creates the data directories the daemon writes to.
func (c Config) EnsureDirectories() error {
	dirs := []string{filepath.Dir(c.DBPath)}
	if c.StatusDir != "" {
		dirs = append(dirs, c.StatusDir)
	}
	if c.KeysFile != "" {
		dirs = append(dirs, filepath.Dir(c.KeysFile))
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create dir %s: %w", dir, err)
		}
	}
	return nil
}

func (c Config) HeartbeatTimeout() time.Duration {
	return time.Duration(c.HeartbeatTimeoutSeconds) * time.Second
}

func (c Config) HeartbeatInterval() time.Duration {
	return time.Duration(c.HeartbeatIntervalSeconds) * time.Second
}

func (c Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

func (c Config) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSeconds) * time.Second
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".briefq"
	}
	return filepath.Join(home, ".local", "share", "briefq")
}
