package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/platinummonkey/jukebox/pkg/observability"
	"github.com/platinummonkey/jukebox/pkg/plugins"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	// Home is the per-user jukebox directory
	Home string
	// SettingsPath is the YAML settings file; it need not exist
	SettingsPath string

	Plugins       PluginConfig
	Server        ServerConfig
	Observability ObservabilityConfig
}

// PluginConfig holds plugin discovery and loading settings
type PluginConfig struct {
	// BuiltinDir holds the bundled addons; lowest search priority
	BuiltinDir string
	// SettingsPaths come from the settings file's plugin_paths
	SettingsPaths []string
	// EnvPaths come from JUKEBOX_PLUGIN_PATH; highest search priority
	EnvPaths []string

	Capabilities       []string
	ActivationTimeout  time.Duration
	ActivationTimeouts map[string]time.Duration
	StrictConfig       bool

	// ConfigDir holds per-plugin user values files
	ConfigDir string
	// SchemaCacheSize bounds the number of parsed schemas kept in memory
	SchemaCacheSize int
}

// ServerConfig holds status server settings
type ServerConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// RescanSchedule is a cron expression for periodic rediscovery; empty disables it
	RescanSchedule string
	Watch          bool
	WatchDebounce  time.Duration
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel  string
	LogFormat string

	// Metrics
	MetricsEnabled bool

	// OpenTelemetry
	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool // Use insecure gRPC connection
	OTelSampleRatio    float64
}

// Settings is the on-disk settings file
type Settings struct {
	PluginPaths        []string          `yaml:"plugin_paths"`
	Capabilities       []string          `yaml:"capabilities"`
	ActivationTimeout  string            `yaml:"activation_timeout"`
	ActivationTimeouts map[string]string `yaml:"activation_timeouts"`
	StrictConfig       *bool             `yaml:"strict_config"`
}

// LoadConfig loads configuration from the environment and the settings file.
// Environment variables take precedence over settings.
func LoadConfig() (*Config, error) {
	home := getEnv("JUKEBOX_HOME", "")
	if home == "" {
		userHome, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("cannot determine home directory: %w", err)
		}
		home = filepath.Join(userHome, ".jukebox")
	}
	home, err := plugins.ExpandHome(home)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Home:          home,
		SettingsPath:  getEnv("JUKEBOX_SETTINGS", filepath.Join(home, "config", "core.yaml")),
		Plugins:       loadPluginConfig(home),
		Server:        loadServerConfig(),
		Observability: loadObservabilityConfig(),
	}

	settings, err := LoadSettings(cfg.SettingsPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.applySettings(settings); err != nil {
		return nil, err
	}
	cfg.applyPluginEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// LoadSettings reads the settings file. A missing file yields empty settings.
func LoadSettings(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &Settings{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}

	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse settings %s: %w", path, err)
	}
	return &s, nil
}

// loadPluginConfig loads plugin defaults that do not depend on settings
func loadPluginConfig(home string) PluginConfig {
	return PluginConfig{
		BuiltinDir:         getEnv("JUKEBOX_BUILTIN_PATH", defaultBuiltinDir()),
		EnvPaths:           plugins.SplitPathList(os.Getenv("JUKEBOX_PLUGIN_PATH"), os.PathListSeparator),
		ActivationTimeout:  plugins.DefaultActivationTimeout,
		ActivationTimeouts: make(map[string]time.Duration),
		ConfigDir:          getEnv("JUKEBOX_CONFIG_DIR", filepath.Join(home, "config", "plugins")),
		SchemaCacheSize:    getEnvInt("JUKEBOX_SCHEMA_CACHE_SIZE", 128),
	}
}

// defaultBuiltinDir is the addons directory shipped next to the binary
func defaultBuiltinDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "addons"
	}
	return filepath.Join(filepath.Dir(exe), "addons")
}

// applySettings merges the settings file into cfg. Relative plugin paths are
// taken relative to the settings file.
func (c *Config) applySettings(s *Settings) error {
	base := filepath.Dir(c.SettingsPath)
	for _, p := range s.PluginPaths {
		if !filepath.IsAbs(p) && !strings.HasPrefix(p, "~") {
			p = filepath.Join(base, p)
		}
		c.Plugins.SettingsPaths = append(c.Plugins.SettingsPaths, p)
	}

	c.Plugins.Capabilities = append(c.Plugins.Capabilities, s.Capabilities...)

	if s.ActivationTimeout != "" {
		d, err := time.ParseDuration(s.ActivationTimeout)
		if err != nil {
			return fmt.Errorf("settings activation_timeout: %w", err)
		}
		c.Plugins.ActivationTimeout = d
	}
	for name, v := range s.ActivationTimeouts {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("settings activation_timeouts.%s: %w", name, err)
		}
		c.Plugins.ActivationTimeouts[name] = d
	}
	if s.StrictConfig != nil {
		c.Plugins.StrictConfig = *s.StrictConfig
	}
	return nil
}

// applyPluginEnv applies environment overrides on top of settings
func (c *Config) applyPluginEnv() {
	if caps := getEnvList("JUKEBOX_CAPABILITIES"); caps != nil {
		c.Plugins.Capabilities = caps
	}
	c.Plugins.ActivationTimeout = getEnvDuration("JUKEBOX_ACTIVATION_TIMEOUT", c.Plugins.ActivationTimeout)
	c.Plugins.StrictConfig = getEnvBool("JUKEBOX_STRICT_CONFIG", c.Plugins.StrictConfig)
}

// loadServerConfig loads server configuration from environment
func loadServerConfig() ServerConfig {
	return ServerConfig{
		Addr:            getEnv("JUKEBOX_HTTP_ADDR", "127.0.0.1:8765"),
		ReadTimeout:     getEnvDuration("JUKEBOX_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("JUKEBOX_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("JUKEBOX_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("JUKEBOX_SHUTDOWN_TIMEOUT", 30*time.Second),
		RescanSchedule:  getEnv("JUKEBOX_RESCAN_SCHEDULE", ""),
		Watch:           getEnvBool("JUKEBOX_WATCH", true),
		WatchDebounce:   getEnvDuration("JUKEBOX_WATCH_DEBOUNCE", plugins.DefaultDebounce),
	}
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           getEnv("JUKEBOX_LOG_LEVEL", "info"),
		LogFormat:          getEnv("JUKEBOX_LOG_FORMAT", "text"),
		MetricsEnabled:     getEnvBool("JUKEBOX_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("JUKEBOX_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("JUKEBOX_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("JUKEBOX_OTEL_SERVICE_NAME", "jukebox"),
		OTelServiceVersion: getEnv("JUKEBOX_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("JUKEBOX_OTEL_INSECURE", true),
		OTelSampleRatio:    getEnvFloat("JUKEBOX_OTEL_SAMPLE_RATIO", 1),
	}
}

// PathSources returns the plugin search sources in increasing priority
func (c *Config) PathSources() []plugins.PathSource {
	sources := make([]plugins.PathSource, 0, 3)
	if c.Plugins.BuiltinDir != "" {
		sources = append(sources, plugins.PathSource{Name: plugins.SourceBuiltin, Entries: []string{c.Plugins.BuiltinDir}})
	}
	sources = append(sources,
		plugins.PathSource{Name: plugins.SourceSettings, Entries: c.Plugins.SettingsPaths},
		plugins.PathSource{Name: plugins.SourceEnv, Entries: c.Plugins.EnvPaths},
	)
	return sources
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Plugins.ActivationTimeout < 0 {
		return fmt.Errorf("activation timeout must not be negative")
	}
	for name, d := range c.Plugins.ActivationTimeouts {
		if d < 0 {
			return fmt.Errorf("activation timeout for %s must not be negative", name)
		}
	}

	if _, err := observability.ParseLevel(c.Observability.LogLevel); err != nil {
		return err
	}
	switch c.Observability.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format: %s (must be text or json)", c.Observability.LogFormat)
	}

	if c.Plugins.SchemaCacheSize < 1 {
		return fmt.Errorf("schema cache size must be positive")
	}

	if c.Server.Addr == "" {
		return fmt.Errorf("server address is required")
	}
	if c.Server.RescanSchedule != "" {
		if _, err := cron.ParseStandard(c.Server.RescanSchedule); err != nil {
			return fmt.Errorf("invalid rescan schedule %q: %w", c.Server.RescanSchedule, err)
		}
	}

	// Validate OpenTelemetry config
	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
		if r := c.Observability.OTelSampleRatio; r < 0 || r > 1 {
			return fmt.Errorf("OpenTelemetry sample ratio must be within [0, 1], got %g", r)
		}
	}

	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat returns a float environment variable or a default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvList returns a comma separated environment variable, or nil when unset
func getEnvList(key string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}
	out := make([]string, 0)
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
