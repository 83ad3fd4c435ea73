package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/platinummonkey/jukebox/pkg/plugins"
	"github.com/spf13/cobra"
)

func newLoadCommand(a *app) *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "load",
		Short: "Load every plugin in plan order, report, then unload",
		Long: `Discover plugins, activate them in plan order and print the outcome for
each one. Plugins are deactivated in reverse order before the command exits.
The command fails when any planned plugin failed to activate.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			m, snap, err := a.discover(ctx)
			if err != nil {
				return err
			}

			results, err := m.LoadAll(ctx)
			if err != nil {
				return err
			}
			defer m.UnloadAll(context.WithoutCancel(ctx))

			p := newPrinter(cmd.OutOrStdout())
			failed := printResults(p, snap, results)
			p.diagnostics(m.Snapshot().Diagnostics, verbose)

			if failed > 0 {
				return fmt.Errorf("%d plugin(s) failed to activate", failed)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Include debug diagnostics")
	return cmd
}

// printResults prints results in plan order followed by excluded plugins and
// returns how many activations failed
func printResults(p *printer, snap *plugins.Snapshot, results map[string]plugins.Result) int {
	names := make([]string, 0, len(results))
	names = append(names, snap.Plan.Order...)
	names = append(names, snap.Plan.Skipped...)
	names = append(names, snap.Plan.Unloadable...)

	failed := 0
	rows := make([][]string, 0, len(names))
	for _, name := range names {
		res, ok := results[name]
		if !ok {
			continue
		}
		if res.State == plugins.StateFailed {
			failed++
		}
		detail := ""
		if res.Err != nil {
			detail = fmt.Sprintf("%s: %v", res.Kind, res.Err)
		}
		duration := "-"
		if !res.Skipped {
			duration = res.Duration.Round(100 * time.Microsecond).String()
		}
		rows = append(rows, []string{name, p.state(res.State), duration, detail})
	}
	p.table([]string{"PLUGIN", "STATE", "TIME", "DETAIL"}, rows)
	return failed
}
