package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/msalah0e/kgraph/internal/api"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if !cfg.UI.Emoji {
		t.Error("default emoji should be true")
	}
	if !cfg.UI.Color {
		t.Error("default color should be true")
	}
	if cfg.Layout.Recompute {
		t.Error("default recompute should be false")
	}
	if cfg.Vault.Backend != "auto" {
		t.Errorf("expected vault backend 'auto', got %q", cfg.Vault.Backend)
	}
	if cfg.Refresh.Interval.Std() != 60*time.Second {
		t.Errorf("expected 60s interval, got %s", cfg.Refresh.Interval)
	}
	if cfg.API.BaseURL != "http://localhost:8000/api/v1/" {
		t.Errorf("unexpected base url %q", cfg.API.BaseURL)
	}
	if cfg.API.Paths() != api.DefaultPaths {
		t.Errorf("default paths %+v differ from client defaults %+v", cfg.API.Paths(), api.DefaultPaths)
	}
	if cfg.Serve.Addr != ":8088" {
		t.Errorf("unexpected serve addr %q", cfg.Serve.Addr)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestConfigDir(t *testing.T) {
	// Test with XDG_CONFIG_HOME set
	t.Setenv("XDG_CONFIG_HOME", "/tmp/test-xdg")
	dir := ConfigDir()
	if dir != "/tmp/test-xdg/kgraph" {
		t.Errorf("expected /tmp/test-xdg/kgraph, got %q", dir)
	}
	if Path() != "/tmp/test-xdg/kgraph/config.toml" {
		t.Errorf("unexpected path %q", Path())
	}

	// Test without XDG_CONFIG_HOME
	t.Setenv("XDG_CONFIG_HOME", "")
	dir = ConfigDir()
	home, _ := os.UserHomeDir()
	expected := filepath.Join(home, ".config", "kgraph")
	if dir != expected {
		t.Errorf("expected %q, got %q", expected, dir)
	}
}

// isolate points config lookups at a fresh temp dir and runs from there.
func isolate(t *testing.T) string {
	t.Helper()
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)
	for _, key := range []string{EnvAPIURL, EnvRefreshInterval, EnvLogLevel, EnvLogFormat, EnvVaultBackend, EnvServeAddr} {
		t.Setenv(key, "")
	}
	t.Chdir(t.TempDir())
	return tmpDir
}

func TestSaveAndLoad(t *testing.T) {
	isolate(t)

	cfg := Default()
	cfg.Refresh.Interval = Duration(90 * time.Second)
	cfg.Layout.Recompute = true
	cfg.API.BaseURL = "https://lms.example.com/api/v1/"

	if err := Save(cfg); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	data, _ := os.ReadFile(Path())
	if !strings.Contains(string(data), `interval = "1m30s"`) {
		t.Errorf("expected duration written as a string, got:\n%s", data)
	}

	loaded, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Refresh.Interval.Std() != 90*time.Second {
		t.Errorf("expected 90s interval, got %s", loaded.Refresh.Interval)
	}
	if !loaded.Layout.Recompute {
		t.Error("expected recompute true after load")
	}
	if loaded.API.BaseURL != "https://lms.example.com/api/v1/" {
		t.Errorf("unexpected base url %q", loaded.API.BaseURL)
	}
}

func TestLoad_Missing(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("expected defaults, got level %q", cfg.Log.Level)
	}
}

func TestLoad_Malformed(t *testing.T) {
	isolate(t)

	os.MkdirAll(ConfigDir(), 0o755)
	os.WriteFile(Path(), []byte("[refresh]\ninterval = \"soon\"\n"), 0o644)

	if _, err := Load(); err == nil {
		t.Error("expected error for bad duration")
	}
}

func TestEnsureExists(t *testing.T) {
	tmpDir := isolate(t)

	if err := EnsureExists(); err != nil {
		t.Fatalf("EnsureExists failed: %v", err)
	}

	path := filepath.Join(tmpDir, "kgraph", "config.toml")
	if _, err := os.Stat(path); err != nil {
		t.Errorf("config file not created: %v", err)
	}

	// Second call should be no-op
	if err := EnsureExists(); err != nil {
		t.Fatalf("EnsureExists second call failed: %v", err)
	}
}

func TestEnvOverrides(t *testing.T) {
	isolate(t)

	t.Setenv(EnvAPIURL, "https://env.example.com/api/")
	t.Setenv(EnvRefreshInterval, "5s")
	t.Setenv(EnvLogLevel, "DEBUG")
	t.Setenv(EnvLogFormat, "json")
	t.Setenv(EnvVaultBackend, "memory")
	t.Setenv(EnvServeAddr, "127.0.0.1:9000")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.API.BaseURL != "https://env.example.com/api/" {
		t.Errorf("unexpected base url %q", cfg.API.BaseURL)
	}
	if cfg.Refresh.Interval.Std() != 5*time.Second {
		t.Errorf("unexpected interval %s", cfg.Refresh.Interval)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("unexpected log config %+v", cfg.Log)
	}
	if cfg.Vault.Backend != "memory" || cfg.Serve.Addr != "127.0.0.1:9000" {
		t.Errorf("unexpected vault/serve %+v %+v", cfg.Vault, cfg.Serve)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid config: %v", err)
	}
}

func TestEnvOverrides_BadInterval(t *testing.T) {
	isolate(t)
	t.Setenv(EnvRefreshInterval, "often")

	if _, err := Load(); err == nil {
		t.Error("expected error for bad interval")
	}
}

func TestDotEnv(t *testing.T) {
	isolate(t)
	t.Setenv(EnvLogLevel, "")
	os.Unsetenv(EnvLogLevel)

	os.WriteFile(".env", []byte(EnvLogLevel+"=warn\n"), 0o644)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("expected level from .env, got %q", cfg.Log.Level)
	}
}

func TestFindProjectConfig(t *testing.T) {
	isolate(t)

	tmpDir := t.TempDir()
	subDir := filepath.Join(tmpDir, "a", "b", "c")
	os.MkdirAll(subDir, 0o755)

	// Write .kgraph.toml in the root tmpDir
	os.WriteFile(filepath.Join(tmpDir, ".kgraph.toml"), []byte("[layout]\nrecompute = true\n"), 0o644)

	t.Chdir(subDir)

	found := findProjectConfig()
	// Resolve symlinks (macOS /var -> /private/var)
	expectedResolved, _ := filepath.EvalSymlinks(filepath.Join(tmpDir, ".kgraph.toml"))
	foundResolved, _ := filepath.EvalSymlinks(found)
	if foundResolved != expectedResolved {
		t.Errorf("expected %q, got %q", expectedResolved, foundResolved)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !cfg.Layout.Recompute {
		t.Error("expected project config to set recompute")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad url", func(c *Config) { c.API.BaseURL = "not a url" }, "api.base_url must be a URL"},
		{"empty path", func(c *Config) { c.API.GraphPath = "" }, "api.graph_path is required"},
		{"short interval", func(c *Config) { c.Refresh.Interval = Duration(time.Millisecond) }, "refresh.interval must be at least 1s"},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, "log.level must be one of"},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }, "log.format must be one of"},
		{"bad backend", func(c *Config) { c.Vault.Backend = "s3" }, "vault.backend must be one of"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected %q in %q", tt.want, err.Error())
			}
		})
	}
}

func TestDurationText(t *testing.T) {
	var d Duration
	if err := d.UnmarshalText([]byte(" 2m ")); err != nil {
		t.Fatalf("UnmarshalText failed: %v", err)
	}
	if d.Std() != 2*time.Minute {
		t.Errorf("expected 2m, got %s", d)
	}
	text, _ := d.MarshalText()
	if string(text) != "2m0s" {
		t.Errorf("unexpected text %q", text)
	}
}
