// Package addons holds the plugins shipped with jukebox. Their manifests and
// schemas live in the top-level addons directory, which is the built-in
// search path.
package addons

import (
	"fmt"

	"github.com/platinummonkey/jukebox/pkg/plugins"
)

// Entry points matching the built-in manifests
const (
	HeartbeatEntry = "heartbeat"
	GreeterEntry   = "greeter"
)

// Register adds the built-in factories to r
func Register(r *plugins.Registry) error {
	for entry, factory := range map[string]plugins.Factory{
		HeartbeatEntry: NewHeartbeat,
		GreeterEntry:   NewGreeter,
	} {
		if err := r.Register(entry, factory); err != nil {
			return fmt.Errorf("register addon %s: %w", entry, err)
		}
	}
	return nil
}
