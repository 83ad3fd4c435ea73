package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/platinummonkey/jukebox/pkg/plugins"
	"github.com/spf13/cobra"
)

func newLaunchCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "launch <plugin> [-- args...]",
		Short: "Load all plugins and run a standalone plugin",
		Long: `Load every plugin, then run the named standalone plugin until it returns.
Arguments after the plugin name are passed to it. Plugins of category
standalone-gui need the "gui" capability.`,
		Example: `  jukebox launch greeter -- jukebox users`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			name := args[0]

			m, _, err := a.discover(ctx)
			if err != nil {
				return err
			}
			if _, err := m.LoadAll(ctx); err != nil {
				return err
			}
			defer m.UnloadAll(context.WithoutCancel(ctx))

			err = m.Launch(ctx, name, args[1:])
			if errors.Is(err, plugins.ErrPluginNotActive) {
				if st, serr := m.Status(name); serr == nil && st.LastError != "" {
					return fmt.Errorf("%w (%s: %s)", err, st.LastKind, st.LastError)
				}
			}
			return err
		},
	}
}
