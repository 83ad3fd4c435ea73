// Package cli provides the jukebox command-line interface.
//
// # Overview
//
// Every command loads configuration from the environment and the settings file
// (see pkg/config), builds a plugin manager with the built-in addons registered
// and runs one discovery cycle.
//
// # Commands
//
// list: Show discovered plugins and their planning verdicts
//
//	jukebox list
//	jukebox list --launchable
//
// plan: Show the load order and why plugins were excluded
//
//	jukebox plan
//	jukebox plan -o json
//
// load: Activate everything in plan order, report, then unload
//
//	jukebox load --plugin-path ./plugins
//
// validate-config: Check configuration values against a plugin schema
//
//	jukebox validate-config heartbeat
//	jukebox validate-config heartbeat ./candidate.yaml --show
//
// launch: Run a standalone plugin
//
//	jukebox launch greeter -- everyone
//
// serve: Keep plugins loaded behind the status API
//
//	jukebox serve --addr 127.0.0.1:8765 --rescan "*/10 * * * *"
//
// The status API exposes /api/v1/plugins, /api/v1/plan, /api/v1/graph,
// /api/v1/diagnostics, /health and /metrics.
//
// # Global Flags
//
//	--plugin-path DIR     extra search directory, highest priority
//	--capability NAME     capability provided by this context, e.g. gui
//	--strict-config       reject invalid configuration instead of repairing
//	--log-level LEVEL     debug, info, warn, error
//	--log-format FORMAT   text or json
package cli
