// Package plugins discovers, plans, configures and activates plugins.
//
// # Overview
//
// A plugin is described by a YAML manifest ("plugin.yaml" or
// "<name>.plugin.yaml") found under one of the search roots. Its code is a
// Factory compiled into the binary and registered under the manifest's entry
// name. Discovery never runs plugin code.
//
// # Lifecycle
//
//	ResolvePaths  ->  Scan  ->  dependencies.Analyze  ->  dependencies.Plan  ->  Loader.LoadAll
//
// Each plugin moves through these states:
//
//	discovered -> planned -> active | failed -> unloaded -> discovered
//
// Search roots are in increasing priority: built-in addons, then the settings
// file, then JUKEBOX_PLUGIN_PATH. A plugin name found under a later root
// shadows the same name under an earlier one.
//
// # Manifest Format
//
//	name: heartbeat
//	category: core            # core, standalone, standalone-gui, host
//	requires: [clock]
//	optional_requires: [metrics]
//	version: 1.0.0
//	license: MIT
//
// Host plugins also name their host and only load when the execution context
// provides the "host:<name>" capability.
//
// # Diagnostics
//
// Problems with individual plugins are reported as Diagnostic values with a
// Kind (MissingDependency, CycleDetected, ActivationTimeout, ...). They never
// abort discovery. Only InternalPlannerInvariantViolation is fatal.
//
// # Usage Example
//
//	registry := plugins.NewRegistry()
//	registry.MustRegister("heartbeat", heartbeat.New)
//
//	mgr := plugins.NewManager(plugins.Options{
//		Sources:  cfg.PathSources(),
//		Registry: registry,
//		Logger:   logger,
//	})
//	if _, err := mgr.Discover(ctx); err != nil {
//		return err
//	}
//	results, err := mgr.LoadAll(ctx)
//	...
//	defer mgr.UnloadAll(context.Background())
//
// # Concurrency
//
// A Manager serializes Discover, LoadAll, UnloadAll and Reload. Readers use
// the latest immutable Snapshot and never wait for a mutation to finish.
//
// # Related Packages
//
//   - pkg/dependencies: Graph analysis and load ordering
//   - pkg/validation: Configuration schemas
//   - pkg/observability: Logging, metrics and panic recovery
package plugins
