// Package config loads and saves ~/.aetracker/config.toml.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	DefaultAddr    = "127.0.0.1:8787"
	DefaultTimeout = 10 * time.Second
)

type Config struct {
	Server ServerConfig `toml:"server"`
	Client ClientConfig `toml:"client"`
	Log    LogConfig    `toml:"log"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
	// DB is the SQLite file. Relative paths are resolved against the config dir.
	DB string `toml:"db"`
}

type ClientConfig struct {
	// URL is the API base, including the /api prefix.
	URL     string   `toml:"url"`
	Timeout Duration `toml:"timeout"`
}

type LogConfig struct {
	Level  string `toml:"level"`  // debug|info|warn|error
	Format string `toml:"format"` // text|json
}

// Duration is a time.Duration written as "10s" in TOML.
type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(b)))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func Default() Config {
	return Config{
		Server: ServerConfig{Addr: DefaultAddr, DB: "aetracker.db"},
		Client: ClientConfig{URL: "http://" + DefaultAddr + "/api", Timeout: Duration{DefaultTimeout}},
		Log:    LogConfig{Level: "info", Format: "text"},
	}
}

func Dir() (string, error) {
	// Test/advanced override (keeps unit tests from touching ~/.aetracker).
	if v := strings.TrimSpace(os.Getenv("AETRACKER_CONFIG_DIR")); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".aetracker"), nil
}

func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Load reads path, or the default location when path is empty. A missing file
// yields Default(); keys absent from the file keep their defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		p, err := Path()
		if err != nil {
			return cfg, err
		}
		path = p
	}
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, cfg.resolve(filepath.Dir(path))
		}
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	if keys := md.Undecoded(); len(keys) > 0 {
		return cfg, fmt.Errorf("config %s: unknown key %s", path, keys[0])
	}
	return cfg, cfg.resolve(filepath.Dir(path))
}

func (c *Config) resolve(dir string) error {
	if c.Server.DB != "" && c.Server.DB != ":memory:" && !filepath.IsAbs(c.Server.DB) {
		c.Server.DB = filepath.Join(dir, c.Server.DB)
	}
	if c.Client.Timeout.Duration < 0 {
		return fmt.Errorf("client.timeout must not be negative")
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}

// ApplyEnv overrides file values with AETRACKER_URL and AETRACKER_LOG_LEVEL.
func (c *Config) ApplyEnv() {
	if v := strings.TrimSpace(os.Getenv("AETRACKER_URL")); v != "" {
		c.Client.URL = v
	}
	if v := strings.TrimSpace(os.Getenv("AETRACKER_LOG_LEVEL")); v != "" {
		c.Log.Level = v
	}
}

// Save writes cfg to path (default location when empty), creating the dir.
func Save(path string, cfg Config) (string, error) {
	if path == "" {
		p, err := Path()
		if err != nil {
			return "", err
		}
		path = p
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return "", err
	}
	return path, atomicWriteFile(dir, "config.toml.*.tmp", path, buf.Bytes(), 0o600)
}

func atomicWriteFile(dir, tmpPattern, path string, b []byte, perm os.FileMode) error {
	f, err := os.CreateTemp(dir, tmpPattern)
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer func() { _ = os.Remove(tmp) }()
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	_ = os.Chmod(tmp, perm)
	return os.Rename(tmp, path)
}

func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level: %s (expected debug|info|warn|error)", s)
}
