package cli

import (
	"encoding/json"
	"fmt"

	"github.com/platinummonkey/jukebox/pkg/dependencies"
	"github.com/platinummonkey/jukebox/pkg/plugins"
	"github.com/spf13/cobra"
)

// planOutput is the JSON shape of "jukebox plan --output json"
type planOutput struct {
	Roots       []string               `json:"roots"`
	Plan        *dependencies.LoadPlan `json:"plan"`
	Diagnostics plugins.Diagnostics    `json:"diagnostics"`
	Verdicts    map[string]string      `json:"verdicts"`
}

func newPlanCommand(a *app) *cobra.Command {
	var output string
	var verbose bool

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show the computed load order",
		Long: `Discover plugins and print the order they would be activated in, along
with the plugins that will be skipped or cannot be loaded and why.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, snap, err := a.discover(cmd.Context())
			if err != nil {
				return err
			}

			switch output {
			case "json":
				verdicts := make(map[string]string, len(snap.Plugins))
				for name, st := range snap.Plugins {
					verdicts[name] = st.Verdict
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(planOutput{
					Roots:       snap.Roots,
					Plan:        snap.Plan,
					Diagnostics: snap.Diagnostics,
					Verdicts:    verdicts,
				})
			case "text":
			default:
				return fmt.Errorf("unknown output format %q (use text or json)", output)
			}

			p := newPrinter(cmd.OutOrStdout())
			p.println(p.header("Search path"))
			for _, root := range snap.Roots {
				p.printf("  %s\n", root)
			}

			p.println()
			p.println(p.header("Load order"))
			if len(snap.Plan.Order) == 0 {
				p.println(p.dim("  (nothing to load)"))
			}
			for i, name := range snap.Plan.Order {
				p.printf("  %2d. %s\n", i+1, name)
			}

			printExcluded(p, "Skipped", snap.Plan.Skipped, snap)
			printExcluded(p, "Unloadable", snap.Plan.Unloadable, snap)
			p.diagnostics(snap.Diagnostics, verbose)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "text", "Output format (text or json)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Include debug diagnostics")
	return cmd
}

func printExcluded(p *printer, title string, names []string, snap *plugins.Snapshot) {
	if len(names) == 0 {
		return
	}
	p.println()
	p.println(p.header(title))
	for _, name := range names {
		if reason := firstProblem(snap.Diagnostics, name); reason != "" {
			p.printf("  %s %s\n", name, p.dim("("+reason+")"))
			continue
		}
		p.printf("  %s\n", name)
	}
}
