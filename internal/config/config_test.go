package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"pgregory.net/rapid"
)

// Config merge precedence: project > global > defaults, per key.
func TestConfigMergePrecedence(t *testing.T) {
	nonEmptyString := rapid.StringMatching(`[a-zA-Z0-9/_.:-]{1,20}`)

	configGen := rapid.Custom(func(t *rapid.T) *Config {
		cfg := &Config{}
		if rapid.Bool().Draw(t, "hasRemoteURL") {
			cfg.RemoteURL = nonEmptyString.Draw(t, "remoteURL")
		}
		if rapid.Bool().Draw(t, "hasDataDir") {
			cfg.DataDir = nonEmptyString.Draw(t, "dataDir")
		}
		if rapid.Bool().Draw(t, "hasListenAddr") {
			cfg.ListenAddr = nonEmptyString.Draw(t, "listenAddr")
		}
		if rapid.Bool().Draw(t, "hasDebounce") {
			cfg.DebounceMS = rapid.IntRange(1, 10_000).Draw(t, "debounce")
		}
		return cfg
	})

	rapid.Check(t, func(t *rapid.T) {
		global := configGen.Draw(t, "global")
		project := configGen.Draw(t, "project")

		merged := Merge(global, project)
		defaults := Defaults()

		checkStringField(t, "RemoteURL", global.RemoteURL, project.RemoteURL, defaults.RemoteURL, merged.RemoteURL)
		checkStringField(t, "DataDir", global.DataDir, project.DataDir, defaults.DataDir, merged.DataDir)
		checkStringField(t, "ListenAddr", global.ListenAddr, project.ListenAddr, defaults.ListenAddr, merged.ListenAddr)

		want := defaults.DebounceMS
		switch {
		case project.DebounceMS > 0:
			want = project.DebounceMS
		case global.DebounceMS > 0:
			want = global.DebounceMS
		}
		if merged.DebounceMS != want {
			t.Fatalf("DebounceMS = %d, want %d", merged.DebounceMS, want)
		}
	})
}

// checkStringField asserts the merge precedence rule for a single string field:
//   - project non-empty  → merged == project
//   - project empty, global non-empty → merged == global
//   - both empty → merged == defaultVal
func checkStringField(t *rapid.T, name, globalVal, projectVal, defaultVal, mergedVal string) {
	t.Helper()
	switch {
	case projectVal != "":
		if mergedVal != projectVal {
			t.Fatalf("%s: both set, expected project value %q, got %q", name, projectVal, mergedVal)
		}
	case globalVal != "":
		if mergedVal != globalVal {
			t.Fatalf("%s: only global set, expected global value %q, got %q", name, globalVal, mergedVal)
		}
	default:
		if mergedVal != defaultVal {
			t.Fatalf("%s: neither set, expected default %q, got %q", name, defaultVal, mergedVal)
		}
	}
}

func TestDefaultsValues(t *testing.T) {
	d := Defaults()
	if d.Debounce() != 300*time.Millisecond {
		t.Errorf("Debounce: want 300ms, got %v", d.Debounce())
	}
	if d.FetchTimeout() != 5*time.Second {
		t.Errorf("FetchTimeout: want 5s, got %v", d.FetchTimeout())
	}
	if d.RemoteURL != "" {
		t.Errorf("RemoteURL: want empty, got %q", d.RemoteURL)
	}
}

func TestLoadGlobalMissingFileReturnsDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := LoadGlobal()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg == nil || *cfg != Defaults() {
		t.Errorf("LoadGlobal = %+v, want defaults", cfg)
	}
}

func TestLoadProjectMissingFileReturnsNil(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := LoadProject()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg != nil {
		t.Errorf("expected nil config, got %+v", cfg)
	}
}

func TestLoadProjectAcceptsComments(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	data := `{
	// sync with the home server
	"remote_url": "http://nas.local:8787",
	"debounce_ms": 500, /* a bit calmer */
}`
	if err := os.WriteFile(filepath.Join(dir, ".pomosync.json"), []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadProject()
	if err != nil {
		t.Fatalf("LoadProject: %v", err)
	}
	if cfg.RemoteURL != "http://nas.local:8787" || cfg.DebounceMS != 500 {
		t.Errorf("LoadProject = %+v", cfg)
	}
}

func TestLoadGlobalParseError(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("HOME", tmp)

	cfgDir := filepath.Join(tmp, ".config", "pomosync")
	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(cfgDir, "config.json"), []byte("{invalid json"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := LoadGlobal()
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected *ParseError, got %T: %v", err, err)
	}
	if parseErr.Path != filepath.Join(cfgDir, "config.json") {
		t.Errorf("ParseError.Path = %q", parseErr.Path)
	}
}

func TestApplyEnv(t *testing.T) {
	cfg := Defaults()
	cfg.RemoteURL = "http://from-file"
	t.Setenv(EnvDataDir, "/tmp/pomo-data")
	t.Setenv(EnvSocket, "/tmp/pomo.sock")
	t.Setenv(EnvRemote, "")
	cfg.ApplyEnv()

	if cfg.RemoteURL != "" {
		t.Errorf("empty %s should disable the remote, got %q", EnvRemote, cfg.RemoteURL)
	}
	if cfg.DataDir != "/tmp/pomo-data" || cfg.SocketPath != "/tmp/pomo.sock" {
		t.Errorf("ApplyEnv = %+v", cfg)
	}
}

func TestResolve(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_DATA_HOME", xdg)

	cfg := Defaults()
	cfg.RulesPath = "/etc/pomo/rules.json"
	if err := cfg.Resolve(); err != nil {
		t.Fatal(err)
	}
	dir := filepath.Join(xdg, "pomosync")
	if cfg.DataDir != dir {
		t.Errorf("DataDir = %q, want %q", cfg.DataDir, dir)
	}
	if cfg.SocketPath != filepath.Join(dir, "blockd.sock") || cfg.ServerDB != filepath.Join(dir, "server.db") {
		t.Errorf("derived paths = %q, %q", cfg.SocketPath, cfg.ServerDB)
	}
	if cfg.RulesPath != "/etc/pomo/rules.json" {
		t.Errorf("explicit RulesPath replaced: %q", cfg.RulesPath)
	}
	if cfg.LocalDB() != filepath.Join(dir, "pomosync.db") || cfg.TimerPath() != filepath.Join(dir, "timer.json") {
		t.Errorf("LocalDB %q TimerPath %q", cfg.LocalDB(), cfg.TimerPath())
	}
	if cfg.ControlPath() != filepath.Join(dir, "run.sock") {
		t.Errorf("ControlPath = %q", cfg.ControlPath())
	}
}
