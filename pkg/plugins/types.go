package plugins

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/platinummonkey/jukebox/pkg/validation"
	"github.com/sirupsen/logrus"
)

// Plugin is the lifecycle interface every plugin implements
type Plugin interface {
	// Activate starts the plugin. It should honour ctx cancellation; a hook
	// that outlives its deadline is abandoned, not killed.
	Activate(ctx context.Context) error
	Deactivate(ctx context.Context) error
}

// Runner is implemented by standalone plugins that can be launched
type Runner interface {
	Plugin
	Run(ctx context.Context, args []string) error
}

// Category defines how and where a plugin can run
type Category string

const (
	CategoryCore          Category = "core"
	CategoryStandalone    Category = "standalone"
	CategoryStandaloneGUI Category = "standalone-gui"
	CategoryHost          Category = "host"
)

// Valid reports whether c is one of the known categories
func (c Category) Valid() bool {
	switch c {
	case CategoryCore, CategoryStandalone, CategoryStandaloneGUI, CategoryHost:
		return true
	}
	return false
}

// Launchable reports whether plugins of this category can be launched
func (c Category) Launchable() bool {
	return c == CategoryStandalone || c == CategoryStandaloneGUI
}

// CapabilityGUI is required to launch standalone-gui plugins
const CapabilityGUI = "gui"

// HostCapability returns the capability a host plugin needs
func HostCapability(host string) string {
	return "host:" + host
}

// Capabilities is the set of features the execution context provides
type Capabilities map[string]struct{}

// NewCapabilities builds a capability set, ignoring blanks
func NewCapabilities(names ...string) Capabilities {
	c := make(Capabilities, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			c[n] = struct{}{}
		}
	}
	return c
}

// Has reports whether the capability is present
func (c Capabilities) Has(name string) bool {
	_, ok := c[name]
	return ok
}

// Metadata is informational descriptor data
type Metadata struct {
	Author      string            `json:"author,omitempty"`
	Version     string            `json:"version,omitempty"`
	Description string            `json:"description,omitempty"`
	Copyright   string            `json:"copyright,omitempty"`
	License     string            `json:"license,omitempty"`
	Extra       map[string]string `json:"extra,omitempty"`
}

// Descriptor is the static, immutable description of one discovered plugin
type Descriptor struct {
	Name string `json:"name"`
	// SourceLocation is the search root the manifest was found under
	SourceLocation   string   `json:"source_location"`
	ManifestPath     string   `json:"manifest_path"`
	Dir              string   `json:"dir"`
	Requires         []string `json:"requires,omitempty"`
	OptionalRequires []string `json:"optional_requires,omitempty"`
	Category         Category `json:"category"`
	Host             string   `json:"host,omitempty"`
	Entry            string   `json:"entry"`
	Metadata         Metadata `json:"metadata"`
}

// SchemaPath returns where the plugin's configuration schema lives
func (d *Descriptor) SchemaPath() string {
	return filepath.Join(d.Dir, d.Name+validation.SchemaExtension)
}

// RequiredCapability returns the capability needed to load the plugin, or ""
func (d *Descriptor) RequiredCapability() string {
	if d.Category == CategoryHost {
		return HostCapability(d.Host)
	}
	return ""
}

// Env is what a factory receives to build a plugin instance
type Env struct {
	Descriptor *Descriptor
	// Config holds the user's values merged with schema defaults
	Config validation.Values
	Logger *logrus.Entry
	// Lookup returns another active plugin by name
	Lookup func(name string) (Plugin, bool)
}

// Factory builds a plugin instance. Factories are keyed by a descriptor's Entry.
type Factory func(env Env) (Plugin, error)
