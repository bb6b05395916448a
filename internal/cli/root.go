// Package cli implements the pizzeria command line.
package cli

import (
	"context"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/deicod/pizzeria/internal/config"
	"github.com/deicod/pizzeria/internal/logging"
	"github.com/deicod/pizzeria/internal/observability/metrics"
	"github.com/deicod/pizzeria/observability/tracing"
)

// app carries what every subcommand needs once the root has loaded config.
type app struct {
	configFile string
	envFiles   []string
	verbose    bool

	cfg    *config.Config
	log    *zap.SugaredLogger
	tracer tracing.Tracer
	stats  *metrics.Stats

	shutdownTracing func(context.Context) error
}

// NewRootCmd constructs the root command with all subcommands attached.
func NewRootCmd() *cobra.Command {
	return newRootCmd(&app{})
}

func newRootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pizzeria",
		Short: "pizzeria - restaurants, pizzas and their prices over HTTP",
		Long:  "pizzeria serves a JSON API over restaurants, pizzas and the prices restaurants charge for them, backed by SQLite or PostgreSQL.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.teardown(cmd.Context())
		},
	}
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	cmd.PersistentFlags().StringVar(&a.configFile, "config", "", "Path to a YAML config file (default ./pizzeria.yaml when present)")
	cmd.PersistentFlags().StringSliceVar(&a.envFiles, "env-file", nil, "Env files loaded before reading the environment (default .env)")
	cmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug logging and error details")
	cmd.AddCommand(newServeCmd(a))
	cmd.AddCommand(newMigrateCmd(a))
	cmd.AddCommand(newSeedCmd(a))
	cmd.AddCommand(newDoctorCmd(a))
	return cmd
}

// Execute runs the CLI entrypoint.
func Execute(ctx context.Context) {
	a := &app{}
	err := newRootCmd(a).ExecuteContext(ctx)
	if code := report(os.Stderr, err, a.verbose); code != 0 {
		os.Exit(code)
	}
}

func (a *app) setup() error {
	cfg, err := config.Load(config.LoadOptions{ConfigFile: a.configFile, EnvFiles: a.envFiles})
	if err != nil {
		return wrapError("config: "+err.Error(), err, "", 2)
	}
	if a.verbose {
		cfg.Log.Level = "debug"
	}
	a.cfg = cfg

	if a.log == nil {
		log, err := logging.New(logging.Options{JSON: cfg.Log.JSON, Level: cfg.Log.Level})
		if err != nil {
			return wrapError("config: "+err.Error(), err, "", 2)
		}
		a.log = log
	}
	if a.stats == nil {
		a.stats = metrics.NewStats()
	}
	if a.tracer == nil && cfg.Tracing.Enabled {
		provider := tracing.NewProvider(cfg.Tracing.ServiceName, withSpanLog(a.log))
		a.tracer = tracing.NewOTelTracer(provider, "")
		a.shutdownTracing = provider.Shutdown
	}
	return nil
}

func (a *app) teardown(ctx context.Context) error {
	if a.shutdownTracing != nil {
		if err := a.shutdownTracing(ctx); err != nil {
			a.log.Warnw("Failed to shut down tracing", logging.FieldError, err.Error())
		}
	}
	if a.log != nil {
		_ = a.log.Sync()
	}
	return nil
}
