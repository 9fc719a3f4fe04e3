package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/tidwall/jsonc"
)

// Config holds all configurable pomosync settings.
type Config struct {
	RemoteURL      string `json:"remote_url"`
	DataDir        string `json:"data_dir"`
	SocketPath     string `json:"socket_path"`
	RulesPath      string `json:"rules_path"`
	DebounceMS     int    `json:"debounce_ms"`
	FetchTimeoutMS int    `json:"fetch_timeout_ms"`
	ListenAddr     string `json:"listen_addr"` // pomo serve
	ServerDB       string `json:"server_db"`   // pomo serve
}

// Environment variables applied over the merged files.
const (
	EnvRemote  = "POMOSYNC_REMOTE"
	EnvDataDir = "POMOSYNC_DATA_DIR"
	EnvSocket  = "POMOSYNC_SOCKET"
)

// Defaults returns sensible default configuration values. Paths left empty
// are derived from the data directory by Resolve.
func Defaults() Config {
	return Config{
		DebounceMS:     300,
		FetchTimeoutMS: 5000,
		ListenAddr:     "127.0.0.1:8787",
	}
}

// ConfigDir returns ~/.config/pomosync.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "pomosync"), nil
}

// LoadGlobal reads ~/.config/pomosync/config.json.
// Returns defaults if the file is absent.
func LoadGlobal() (*Config, error) {
	dir, err := ConfigDir()
	if err != nil {
		return nil, err
	}
	return loadFile(filepath.Join(dir, "config.json"), true)
}

// LoadProject reads .pomosync.json in the current working directory.
// Returns nil (no error) if the file is absent.
func LoadProject() (*Config, error) {
	return loadFile(".pomosync.json", false)
}

// loadFile reads and parses a JSONC config file at path. Comments and
// trailing commas are accepted.
func loadFile(path string, returnDefaults bool) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if returnDefaults {
				d := Defaults()
				return &d, nil
			}
			return nil, nil
		}
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(jsonc.ToJSON(data), &cfg); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	return &cfg, nil
}

// Merge combines global and project configs, with project taking precedence.
// Missing keys fall back to global, then defaults.
func Merge(global, project *Config) Config {
	result := Defaults()
	for _, layer := range []*Config{global, project} {
		if layer == nil {
			continue
		}
		overlayString(&result.RemoteURL, layer.RemoteURL)
		overlayString(&result.DataDir, layer.DataDir)
		overlayString(&result.SocketPath, layer.SocketPath)
		overlayString(&result.RulesPath, layer.RulesPath)
		overlayString(&result.ListenAddr, layer.ListenAddr)
		overlayString(&result.ServerDB, layer.ServerDB)
		if layer.DebounceMS > 0 {
			result.DebounceMS = layer.DebounceMS
		}
		if layer.FetchTimeoutMS > 0 {
			result.FetchTimeoutMS = layer.FetchTimeoutMS
		}
	}
	return result
}

func overlayString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// ApplyEnv overrides values from the environment. Set but empty
// POMOSYNC_REMOTE disables the remote tier.
func (c *Config) ApplyEnv() {
	if v, ok := os.LookupEnv(EnvRemote); ok {
		c.RemoteURL = v
	}
	if v := os.Getenv(EnvDataDir); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv(EnvSocket); v != "" {
		c.SocketPath = v
	}
}

// Resolve fills every empty path from the data directory, which itself
// defaults to $XDG_DATA_HOME/pomosync or ~/.local/share/pomosync.
func (c *Config) Resolve() error {
	if c.DataDir == "" {
		base := os.Getenv("XDG_DATA_HOME")
		if base == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return err
			}
			base = filepath.Join(home, ".local", "share")
		}
		c.DataDir = filepath.Join(base, "pomosync")
	}
	if c.SocketPath == "" {
		c.SocketPath = filepath.Join(c.DataDir, "blockd.sock")
	}
	if c.RulesPath == "" {
		c.RulesPath = filepath.Join(c.DataDir, "rules.json")
	}
	if c.ServerDB == "" {
		c.ServerDB = filepath.Join(c.DataDir, "server.db")
	}
	return nil
}

// LocalDB is the durable local tier's database file.
func (c Config) LocalDB() string { return filepath.Join(c.DataDir, "pomosync.db") }

// TimerPath is the ephemeral tier's file.
func (c Config) TimerPath() string { return filepath.Join(c.DataDir, "timer.json") }

// MirrorPath is the daemon's blocklist mirror.
func (c Config) MirrorPath() string { return filepath.Join(c.DataDir, "blocker.json") }

// ControlPath is the socket a running timer accepts edits on. It lives
// beside the state it guards so one data directory has one owner.
func (c Config) ControlPath() string { return filepath.Join(c.DataDir, "run.sock") }

// Debounce returns debounce_ms as a duration.
func (c Config) Debounce() time.Duration { return time.Duration(c.DebounceMS) * time.Millisecond }

// FetchTimeout returns fetch_timeout_ms as a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutMS) * time.Millisecond
}

// ParseError is returned when a config file exists but cannot be parsed.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return "failed to parse config file " + e.Path + ": " + e.Err.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
