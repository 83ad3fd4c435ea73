package cli

import (
	"fmt"

	"github.com/platinummonkey/jukebox/pkg/validation"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newValidateConfigCommand(a *app) *cobra.Command {
	var show bool

	cmd := &cobra.Command{
		Use:   "validate-config <plugin> [values-file]",
		Short: "Validate plugin configuration against its schema",
		Long: `Check configuration values against the plugin's schema. Without a values
file the user's configuration for the plugin is checked.`,
		Example: `  # Check the stored configuration
  jukebox validate-config heartbeat

  # Check a candidate file before installing it
  jukebox validate-config heartbeat ./heartbeat.yaml`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			m, _, err := a.discover(cmd.Context())
			if err != nil {
				return err
			}

			var violations []validation.Violation
			var effective validation.Values
			source := m.ConfigPath(name)
			if len(args) == 2 {
				source = args[1]
				values, err := validation.LoadValues(source)
				if err != nil {
					return err
				}
				if violations, err = m.ValidateConfig(name, values); err != nil {
					return err
				}
			} else if effective, violations, err = m.Config(name); err != nil {
				return err
			}

			p := newPrinter(cmd.OutOrStdout())
			if len(violations) == 0 {
				p.printf("%s %s (%s)\n", p.fg("46").Render("valid"), name, source)
			} else {
				rows := make([][]string, 0, len(violations))
				for _, v := range violations {
					rows = append(rows, []string{v.Key, string(v.Kind), v.Detail})
				}
				p.table([]string{"KEY", "VIOLATION", "DETAIL"}, rows)
			}

			if show && effective != nil {
				out, err := yaml.Marshal(map[string]any(effective))
				if err != nil {
					return err
				}
				p.println()
				p.println(p.header("Effective configuration"))
				p.printf("%s", out)
			}

			if len(violations) > 0 {
				return fmt.Errorf("%s: %d violation(s)", name, len(violations))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&show, "show", false, "Print the effective configuration with defaults applied")
	return cmd
}
