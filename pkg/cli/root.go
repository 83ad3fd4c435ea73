package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/platinummonkey/jukebox/pkg/addons"
	"github.com/platinummonkey/jukebox/pkg/config"
	"github.com/platinummonkey/jukebox/pkg/observability"
	"github.com/platinummonkey/jukebox/pkg/plugins"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Version is stamped at build time
var Version = "dev"

// schemaTTL bounds how long a parsed schema is trusted without a stat change
const schemaTTL = 10 * time.Minute

// Options configures the command tree
type Options struct {
	// Register adds plugin factories to a fresh registry. Nil registers the
	// built-in addons.
	Register func(*plugins.Registry) error
	Out      io.Writer
	Err      io.Writer
}

// app carries state shared by every subcommand
type app struct {
	opts Options
	cfg  *config.Config
	log  *logrus.Logger

	pluginPaths  []string
	capabilities []string
	logLevel     string
	logFormat    string
	strict       bool
}

// NewRootCommand creates the root command
func NewRootCommand(opts Options) *cobra.Command {
	a := &app{opts: opts}

	root := &cobra.Command{
		Use:   "jukebox",
		Short: "Discover, plan, load and configure jukebox plugins",
		Long: `jukebox finds plugin manifests on the search path, works out a safe
load order from their requirements, validates each plugin's configuration
against its schema and manages the plugin lifecycle.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringArrayVar(&a.pluginPaths, "plugin-path", nil, "Extra plugin search directory with the highest priority (repeatable)")
	flags.StringSliceVar(&a.capabilities, "capability", nil, "Capability provided by this execution context (repeatable)")
	flags.StringVar(&a.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flags.StringVar(&a.logFormat, "log-format", "", "Log format (text or json)")
	flags.BoolVar(&a.strict, "strict-config", false, "Fail activation on invalid configuration instead of repairing it")

	if opts.Out != nil {
		root.SetOut(opts.Out)
	}
	if opts.Err != nil {
		root.SetErr(opts.Err)
	}

	root.AddCommand(
		newListCommand(a),
		newPlanCommand(a),
		newLoadCommand(a),
		newValidateConfigCommand(a),
		newLaunchCommand(a),
		newServeCommand(a),
	)
	return root
}

// Execute runs the jukebox command line
func Execute(ctx context.Context) error {
	return NewRootCommand(Options{}).ExecuteContext(ctx)
}

// init loads configuration and applies flag overrides
func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if a.logLevel != "" {
		cfg.Observability.LogLevel = a.logLevel
	}
	if a.logFormat != "" {
		cfg.Observability.LogFormat = a.logFormat
	}
	cfg.Plugins.EnvPaths = append(cfg.Plugins.EnvPaths, a.pluginPaths...)
	if flags.Changed("capability") {
		cfg.Plugins.Capabilities = append(cfg.Plugins.Capabilities, a.capabilities...)
	}
	if flags.Changed("strict-config") {
		cfg.Plugins.StrictConfig = a.strict
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	log, err := observability.NewLogger(cfg.Observability.LogLevel, cfg.Observability.LogFormat, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.log = log
	return nil
}

// newManager builds a manager from the loaded configuration
func (a *app) newManager(recorder observability.PluginRecorder) (*plugins.Manager, error) {
	register := a.opts.Register
	if register == nil {
		register = addons.Register
	}
	registry := plugins.NewRegistry()
	if err := register(registry); err != nil {
		return nil, err
	}

	return plugins.NewManager(plugins.Options{
		Sources:            a.cfg.PathSources(),
		Registry:           registry,
		Capabilities:       plugins.NewCapabilities(a.cfg.Plugins.Capabilities...),
		ActivationTimeout:  a.cfg.Plugins.ActivationTimeout,
		ActivationTimeouts: a.cfg.Plugins.ActivationTimeouts,
		StrictConfig:       a.cfg.Plugins.StrictConfig,
		ConfigDir:          a.cfg.Plugins.ConfigDir,
		Logger:             a.log,
		Recorder:           recorder,
		SchemaCache:        plugins.NewSchemaCache(a.cfg.Plugins.SchemaCacheSize, schemaTTL),
	}), nil
}

// discover builds a manager and runs one discovery cycle
func (a *app) discover(ctx context.Context) (*plugins.Manager, *plugins.Snapshot, error) {
	m, err := a.newManager(nil)
	if err != nil {
		return nil, nil, err
	}
	snap, err := m.Discover(ctx)
	if err != nil {
		return nil, nil, err
	}
	return m, snap, nil
}
