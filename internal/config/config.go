package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/msalah0e/kgraph/internal/api"
	"github.com/pkg/errors"
)

const (
	projectFile = ".kgraph.toml"
	dotEnvFile  = ".env"
)

// Environment variables that override file values.
const (
	EnvAPIURL          = "KGRAPH_API_URL"
	EnvRefreshInterval = "KGRAPH_REFRESH_INTERVAL"
	EnvLogLevel        = "KGRAPH_LOG_LEVEL"
	EnvLogFormat       = "KGRAPH_LOG_FORMAT"
	EnvVaultBackend    = "KGRAPH_VAULT_BACKEND"
	EnvServeAddr       = "KGRAPH_SERVE_ADDR"
)

// Config holds kgraph configuration.
type Config struct {
	API     APIConfig     `toml:"api"`
	Refresh RefreshConfig `toml:"refresh"`
	Layout  LayoutConfig  `toml:"layout"`
	UI      UIConfig      `toml:"ui"`
	Log     LogConfig     `toml:"log"`
	Vault   VaultConfig   `toml:"vault"`
	Serve   ServeConfig   `toml:"serve"`
}

// APIConfig points at the LMS backend.
type APIConfig struct {
	BaseURL          string   `toml:"base_url" validate:"required,url"`
	GraphPath        string   `toml:"graph_path" validate:"required"`
	CoursesPath      string   `toml:"courses_path" validate:"required"`
	ProgressPath     string   `toml:"progress_path" validate:"required"`
	DashboardPath    string   `toml:"dashboard_path" validate:"required"`
	TokenRefreshPath string   `toml:"token_refresh_path" validate:"required"`
	Timeout          Duration `toml:"timeout" validate:"mindur=1s"`
}

// RefreshConfig controls the polling loop.
type RefreshConfig struct {
	Interval Duration `toml:"interval" validate:"mindur=1s"`
}

// LayoutConfig controls the layout engine.
type LayoutConfig struct {
	// Recompute runs the layout engine even when the server supplied positions.
	Recompute bool `toml:"recompute"`
}

// UIConfig controls display options.
type UIConfig struct {
	Emoji bool `toml:"emoji"`
	Color bool `toml:"color"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level  string `toml:"level" validate:"oneof=debug info warn error"`
	Format string `toml:"format" validate:"oneof=text json"`
}

// VaultConfig controls vault backend selection.
type VaultConfig struct {
	Backend string `toml:"backend" validate:"oneof=auto keychain file memory"` // "auto", "keychain", "file", "memory"
}

// ServeConfig controls the live HTTP view.
type ServeConfig struct {
	Addr string `toml:"addr" validate:"required,hostname_port|startswith=:"`
}

// Duration is a time.Duration written as a string such as "60s" in TOML.
type Duration time.Duration

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return errors.Wrapf(err, "invalid duration %q", text)
	}
	*d = Duration(v)
	return nil
}

// Paths returns the configured endpoint paths for the API client.
func (a APIConfig) Paths() api.Paths {
	return api.Paths{
		Graph:        a.GraphPath,
		Courses:      a.CoursesPath,
		Progress:     a.ProgressPath,
		Dashboard:    a.DashboardPath,
		TokenRefresh: a.TokenRefreshPath,
	}
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:          "http://localhost:8000/api/v1/",
			GraphPath:        api.DefaultPaths.Graph,
			CoursesPath:      api.DefaultPaths.Courses,
			ProgressPath:     api.DefaultPaths.Progress,
			DashboardPath:    api.DefaultPaths.Dashboard,
			TokenRefreshPath: api.DefaultPaths.TokenRefresh,
			Timeout:          Duration(15 * time.Second),
		},
		Refresh: RefreshConfig{Interval: Duration(60 * time.Second)},
		UI:      UIConfig{Emoji: true, Color: true},
		Log:     LogConfig{Level: "info", Format: "text"},
		Vault:   VaultConfig{Backend: "auto"},
		Serve:   ServeConfig{Addr: ":8088"},
	}
}

// ConfigDir returns the kgraph config directory path.
func ConfigDir() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "kgraph")
}

// Path returns the global config file path.
func Path() string {
	return filepath.Join(ConfigDir(), "config.toml")
}

// Load reads the global config, then a project .kgraph.toml found in the
// working directory or any parent, then .env and KGRAPH_* overrides. Missing
// files are not errors; malformed ones are.
func Load() (*Config, error) {
	cfg := Default()

	if err := decodeFile(Path(), cfg); err != nil {
		return cfg, err
	}
	if project := findProjectConfig(); project != "" {
		if err := decodeFile(project, cfg); err != nil {
			return cfg, err
		}
	}

	if err := loadDotEnv(dotEnvFile); err != nil {
		return cfg, err
	}
	if err := applyEnv(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrapf(err, "reading %s", path)
	}
	if _, err := toml.Decode(string(data), cfg); err != nil {
		return errors.Wrapf(err, "parsing %s", path)
	}
	return nil
}

// loadDotEnv loads path into the environment if it exists. Variables already
// set in the environment win.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrapf(err, "stat %s", path)
	}
	return errors.Wrapf(godotenv.Load(path), "loading %s", path)
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv(EnvAPIURL); v != "" {
		cfg.API.BaseURL = v
	}
	if v := os.Getenv(EnvRefreshInterval); v != "" {
		if err := cfg.Refresh.Interval.UnmarshalText([]byte(v)); err != nil {
			return errors.Wrap(err, EnvRefreshInterval)
		}
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Log.Level = strings.ToLower(v)
	}
	if v := os.Getenv(EnvLogFormat); v != "" {
		cfg.Log.Format = strings.ToLower(v)
	}
	if v := os.Getenv(EnvVaultBackend); v != "" {
		cfg.Vault.Backend = strings.ToLower(v)
	}
	if v := os.Getenv(EnvServeAddr); v != "" {
		cfg.Serve.Addr = v
	}
	return nil
}

// findProjectConfig walks up from the working directory looking for .kgraph.toml.
func findProjectConfig() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		path := filepath.Join(dir, projectFile)
		if _, err := os.Stat(path); err == nil {
			return path
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// Save writes the config to the global config file.
func Save(cfg *Config) error {
	path := Path()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "creating config dir")
	}

	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "creating config file")
	}
	defer f.Close()

	return errors.Wrap(toml.NewEncoder(f).Encode(cfg), "encoding config")
}

// EnsureExists creates the config file with defaults if it doesn't exist.
func EnsureExists() error {
	if _, err := os.Stat(Path()); err == nil {
		return nil // already exists
	}
	return Save(Default())
}
