package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/platinummonkey/jukebox/pkg/plugins"
)

// isolate points every location at a temp dir and clears overrides
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("JUKEBOX_HOME", home)
	for _, key := range []string{
		"JUKEBOX_SETTINGS", "JUKEBOX_PLUGIN_PATH", "JUKEBOX_BUILTIN_PATH", "JUKEBOX_CONFIG_DIR",
		"JUKEBOX_ACTIVATION_TIMEOUT", "JUKEBOX_STRICT_CONFIG", "JUKEBOX_LOG_LEVEL",
		"JUKEBOX_LOG_FORMAT", "JUKEBOX_RESCAN_SCHEDULE", "JUKEBOX_OTEL_ENABLED",
		"JUKEBOX_SCHEMA_CACHE_SIZE",
	} {
		t.Setenv(key, "")
	}
	t.Setenv("JUKEBOX_CAPABILITIES", "")
	os.Unsetenv("JUKEBOX_CAPABILITIES")
	return home
}

func writeSettings(t *testing.T, home, content string) string {
	t.Helper()
	path := filepath.Join(home, "config", "core.yaml")
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

// TestGetEnv tests the getEnv helper function
func TestGetEnv(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue string
		envValue     string
		want         string
	}{
		{
			name:         "returns env value when set",
			key:          "TEST_VAR",
			defaultValue: "default",
			envValue:     "custom",
			want:         "custom",
		},
		{
			name:         "returns default when env not set",
			key:          "TEST_VAR_NOT_SET",
			defaultValue: "default",
			envValue:     "",
			want:         "default",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.envValue)

			got := getEnv(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnv() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestGetEnvBool tests the getEnvBool helper function
func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		name         string
		envValue     string
		defaultValue bool
		want         bool
	}{
		{"true", "true", false, true},
		{"one", "1", false, true},
		{"false", "false", true, false},
		{"upper", "TRUE", false, true},
		{"unset", "", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_BOOL", tt.envValue)
			if got := getEnvBool("TEST_BOOL", tt.defaultValue); got != tt.want {
				t.Errorf("getEnvBool() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetEnvDuration(t *testing.T) {
	t.Setenv("TEST_DURATION", "5s")
	if got := getEnvDuration("TEST_DURATION", time.Second); got != 5*time.Second {
		t.Errorf("getEnvDuration() = %v, want 5s", got)
	}

	t.Setenv("TEST_DURATION", "soon")
	if got := getEnvDuration("TEST_DURATION", time.Second); got != time.Second {
		t.Errorf("getEnvDuration() with invalid value = %v, want default", got)
	}
}

func TestGetEnvFloat(t *testing.T) {
	t.Setenv("TEST_FLOAT", "0.25")
	if got := getEnvFloat("TEST_FLOAT", 1); got != 0.25 {
		t.Errorf("getEnvFloat() = %v, want 0.25", got)
	}

	t.Setenv("TEST_FLOAT", "most")
	if got := getEnvFloat("TEST_FLOAT", 1); got != 1 {
		t.Errorf("getEnvFloat() with invalid value = %v, want default", got)
	}
}

func TestGetEnvList(t *testing.T) {
	t.Setenv("TEST_LIST", "")
	os.Unsetenv("TEST_LIST")
	if got := getEnvList("TEST_LIST"); got != nil {
		t.Errorf("getEnvList() unset = %v, want nil", got)
	}

	t.Setenv("TEST_LIST", " gui, host:studio ,,")
	got := getEnvList("TEST_LIST")
	if len(got) != 2 || got[0] != "gui" || got[1] != "host:studio" {
		t.Errorf("getEnvList() = %v", got)
	}

	t.Setenv("TEST_LIST", "")
	if got := getEnvList("TEST_LIST"); got == nil || len(got) != 0 {
		t.Errorf("getEnvList() empty = %v, want empty non-nil", got)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	home := isolate(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Home != home {
		t.Errorf("Home = %s, want %s", cfg.Home, home)
	}
	if want := filepath.Join(home, "config", "core.yaml"); cfg.SettingsPath != want {
		t.Errorf("SettingsPath = %s, want %s", cfg.SettingsPath, want)
	}
	if want := filepath.Join(home, "config", "plugins"); cfg.Plugins.ConfigDir != want {
		t.Errorf("ConfigDir = %s, want %s", cfg.Plugins.ConfigDir, want)
	}
	if cfg.Plugins.ActivationTimeout != plugins.DefaultActivationTimeout {
		t.Errorf("ActivationTimeout = %v", cfg.Plugins.ActivationTimeout)
	}
	if cfg.Plugins.StrictConfig {
		t.Error("StrictConfig should default to false")
	}
	if cfg.Observability.LogLevel != "info" || cfg.Observability.LogFormat != "text" {
		t.Errorf("unexpected log settings %+v", cfg.Observability)
	}
}

func TestLoadConfig_SettingsFile(t *testing.T) {
	home := isolate(t)
	writeSettings(t, home, `
plugin_paths:
  - extra
  - /opt/jukebox/plugins
capabilities: [gui]
activation_timeout: 5s
activation_timeouts:
  heartbeat: 250ms
strict_config: true
`)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	wantPaths := []string{filepath.Join(home, "config", "extra"), "/opt/jukebox/plugins"}
	if len(cfg.Plugins.SettingsPaths) != 2 || cfg.Plugins.SettingsPaths[0] != wantPaths[0] || cfg.Plugins.SettingsPaths[1] != wantPaths[1] {
		t.Errorf("SettingsPaths = %v, want %v", cfg.Plugins.SettingsPaths, wantPaths)
	}
	if len(cfg.Plugins.Capabilities) != 1 || cfg.Plugins.Capabilities[0] != "gui" {
		t.Errorf("Capabilities = %v", cfg.Plugins.Capabilities)
	}
	if cfg.Plugins.ActivationTimeout != 5*time.Second {
		t.Errorf("ActivationTimeout = %v", cfg.Plugins.ActivationTimeout)
	}
	if cfg.Plugins.ActivationTimeouts["heartbeat"] != 250*time.Millisecond {
		t.Errorf("ActivationTimeouts = %v", cfg.Plugins.ActivationTimeouts)
	}
	if !cfg.Plugins.StrictConfig {
		t.Error("StrictConfig should be true")
	}
}

func TestLoadConfig_EnvOverridesSettings(t *testing.T) {
	home := isolate(t)
	writeSettings(t, home, "capabilities: [gui]\nactivation_timeout: 5s\nstrict_config: true\n")

	t.Setenv("JUKEBOX_CAPABILITIES", "host:studio")
	t.Setenv("JUKEBOX_ACTIVATION_TIMEOUT", "2s")
	t.Setenv("JUKEBOX_STRICT_CONFIG", "false")
	t.Setenv("JUKEBOX_PLUGIN_PATH", "/a"+string(os.PathListSeparator)+"/b")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if len(cfg.Plugins.Capabilities) != 1 || cfg.Plugins.Capabilities[0] != "host:studio" {
		t.Errorf("Capabilities = %v", cfg.Plugins.Capabilities)
	}
	if cfg.Plugins.ActivationTimeout != 2*time.Second {
		t.Errorf("ActivationTimeout = %v", cfg.Plugins.ActivationTimeout)
	}
	if cfg.Plugins.StrictConfig {
		t.Error("StrictConfig should be overridden to false")
	}
	if len(cfg.Plugins.EnvPaths) != 2 {
		t.Errorf("EnvPaths = %v", cfg.Plugins.EnvPaths)
	}
}

func TestLoadConfig_InvalidSettings(t *testing.T) {
	home := isolate(t)
	writeSettings(t, home, "activation_timeout: forever\n")

	if _, err := LoadConfig(); err == nil {
		t.Error("expected error for invalid activation_timeout")
	}

	writeSettings(t, home, "plugin_paths: {not: a list}\n")
	if _, err := LoadConfig(); err == nil {
		t.Error("expected error for malformed settings")
	}
}

func TestPathSources(t *testing.T) {
	cfg := &Config{Plugins: PluginConfig{
		BuiltinDir:    "/builtin",
		SettingsPaths: []string{"/settings"},
		EnvPaths:      []string{"/env"},
	}}

	sources := cfg.PathSources()
	if len(sources) != 3 {
		t.Fatalf("PathSources() returned %d sources, want 3", len(sources))
	}
	wantNames := []string{plugins.SourceBuiltin, plugins.SourceSettings, plugins.SourceEnv}
	for i, src := range sources {
		if src.Name != wantNames[i] {
			t.Errorf("source %d = %s, want %s", i, src.Name, wantNames[i])
		}
	}
	if sources[2].Entries[0] != "/env" {
		t.Errorf("env source = %v", sources[2].Entries)
	}
}

// TestConfig_Validate tests the Validate method
func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Plugins: PluginConfig{
				ActivationTimeout:  time.Second,
				ActivationTimeouts: map[string]time.Duration{},
				SchemaCacheSize:    16,
			},
			Server:        ServerConfig{Addr: "127.0.0.1:0"},
			Observability: ObservabilityConfig{LogLevel: "info", LogFormat: "text"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"negative timeout", func(c *Config) { c.Plugins.ActivationTimeout = -time.Second }, true},
		{"negative override", func(c *Config) { c.Plugins.ActivationTimeouts["x"] = -1 }, true},
		{"bad log level", func(c *Config) { c.Observability.LogLevel = "loud" }, true},
		{"bad log format", func(c *Config) { c.Observability.LogFormat = "xml" }, true},
		{"empty addr", func(c *Config) { c.Server.Addr = "" }, true},
		{"zero cache", func(c *Config) { c.Plugins.SchemaCacheSize = 0 }, true},
		{"valid schedule", func(c *Config) { c.Server.RescanSchedule = "*/5 * * * *" }, false},
		{"bad schedule", func(c *Config) { c.Server.RescanSchedule = "whenever" }, true},
		{"otel without endpoint", func(c *Config) {
			c.Observability.OTelEnabled = true
			c.Observability.OTelServiceName = "jukebox"
		}, true},
		{"otel sample ratio out of range", func(c *Config) {
			c.Observability.OTelEnabled = true
			c.Observability.OTelEndpoint = "localhost:4317"
			c.Observability.OTelServiceName = "jukebox"
			c.Observability.OTelSampleRatio = 1.5
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
