// Package config provides application configuration management from environment
// variables and an optional YAML settings file.
//
// # Overview
//
// Configuration is layered. Built-in defaults come first, then the settings file
// (default $JUKEBOX_HOME/config/core.yaml), then environment variables. A missing
// settings file is not an error.
//
// # Settings File
//
//	plugin_paths:
//	  - extra            # relative to the settings file
//	  - ~/jukebox-plugins
//	capabilities: [gui]
//	activation_timeout: 30s
//	activation_timeouts:
//	  heartbeat: 2s
//	strict_config: false
//
// # Environment
//
// Plugin settings:
//
//	JUKEBOX_HOME="~/.jukebox"
//	JUKEBOX_SETTINGS="~/.jukebox/config/core.yaml"
//	JUKEBOX_BUILTIN_PATH="/usr/share/jukebox/addons"
//	JUKEBOX_PLUGIN_PATH="/a:/b"          # highest search priority
//	JUKEBOX_CONFIG_DIR="~/.jukebox/config/plugins"
//	JUKEBOX_CAPABILITIES="gui,host:studio"  # replaces settings capabilities
//	JUKEBOX_ACTIVATION_TIMEOUT="30s"
//	JUKEBOX_STRICT_CONFIG="false"
//	JUKEBOX_SCHEMA_CACHE_SIZE="128"
//
// Server settings:
//
//	JUKEBOX_HTTP_ADDR="127.0.0.1:8765"
//	JUKEBOX_READ_TIMEOUT="15s"
//	JUKEBOX_WRITE_TIMEOUT="15s"
//	JUKEBOX_SHUTDOWN_TIMEOUT="30s"
//	JUKEBOX_RESCAN_SCHEDULE="*/10 * * * *"  # cron; empty disables
//	JUKEBOX_WATCH="true"
//	JUKEBOX_WATCH_DEBOUNCE="500ms"
//
// Observability settings:
//
//	JUKEBOX_LOG_LEVEL="info"  # debug, info, warn, error
//	JUKEBOX_LOG_FORMAT="text" # text, json
//	JUKEBOX_METRICS_ENABLED="true"
//	JUKEBOX_OTEL_ENABLED="false"
//	JUKEBOX_OTEL_ENDPOINT="localhost:4317"
//	JUKEBOX_OTEL_SAMPLE_RATIO="1.0"
//
// # Usage Example
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//	roots, diags := plugins.ResolvePaths(cfg.PathSources()...)
//
// # Related Packages
//
//   - pkg/plugins: Consumes PathSources and plugin settings
//   - pkg/observability: Uses observability configuration
package config
