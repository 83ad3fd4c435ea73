package cli

import (
	"github.com/platinummonkey/jukebox/pkg/plugins"
	"github.com/spf13/cobra"
)

func newListCommand(a *app) *cobra.Command {
	var launchable, verbose bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List discovered plugins",
		Long: `List every plugin found on the search path together with its planning
verdict. With --launchable only standalone plugins that can be started with
"jukebox launch" are shown.`,
		Example: `  # Everything on the search path
  jukebox list

  # Only plugins that can be launched
  jukebox list --launchable`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, snap, err := a.discover(cmd.Context())
			if err != nil {
				return err
			}

			p := newPrinter(cmd.OutOrStdout())
			descs := snap.Catalog.Descriptors()
			if launchable {
				descs = m.Standalone()
			}
			if len(descs) == 0 {
				p.println("No plugins found.")
				p.diagnostics(snap.Diagnostics, verbose)
				return nil
			}

			rows := make([][]string, 0, len(descs))
			for _, d := range descs {
				rows = append(rows, []string{
					d.Name,
					string(d.Category),
					orDash(d.Metadata.Version),
					p.verdict(snap.Plugins[d.Name].Verdict),
					d.SourceLocation,
				})
			}
			p.table([]string{"NAME", "CATEGORY", "VERSION", "VERDICT", "SOURCE"}, rows)

			if !launchable {
				p.diagnostics(snap.Diagnostics, verbose)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&launchable, "launchable", false, "Only list plugins that can be launched")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Include debug diagnostics such as skipped search paths")
	return cmd
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// firstProblem returns the diagnostic explaining why a plugin was excluded.
// Warnings never exclude a plugin.
func firstProblem(ds plugins.Diagnostics, name string) string {
	for _, d := range ds.ForPlugin(name) {
		if d.Severity == plugins.SeverityWarning || d.Severity == plugins.SeverityDebug {
			continue
		}
		return string(d.Kind) + ": " + d.Message
	}
	return ""
}
