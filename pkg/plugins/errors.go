package plugins

import "errors"

var (
	// ErrPluginNotFound is returned when a name is not in the catalog
	ErrPluginNotFound = errors.New("plugin not found")
	// ErrPluginNotActive is returned when a plugin exists but is not active
	ErrPluginNotActive = errors.New("plugin not active")
	// ErrNoFactory is returned when no factory is registered for an entry
	ErrNoFactory = errors.New("no factory registered")
	// ErrFactoryExists is returned when an entry is registered twice
	ErrFactoryExists = errors.New("factory already registered")
	// ErrNotRunnable is returned when launching a plugin that cannot run
	ErrNotRunnable = errors.New("plugin is not runnable")
	// ErrCapabilityMissing is returned when the execution context lacks a capability
	ErrCapabilityMissing = errors.New("required capability missing")
	// ErrActivationTimeout is returned when a hook exceeds its deadline
	ErrActivationTimeout = errors.New("activation timed out")
	// ErrNotDiscovered is returned when an operation needs a prior discovery
	ErrNotDiscovered = errors.New("no discovery has been performed")
)
