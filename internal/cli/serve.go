package cli

import (
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/deicod/pizzeria/server"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		addr        string
		autoMigrate bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			if cmd.Flags().Changed("addr") {
				cfg.Server.Addr = addr
			}
			if cmd.Flags().Changed("migrate") {
				cfg.Database.AutoMigrate = autoMigrate
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			s, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			if cfg.Database.AutoMigrate {
				applied, err := applyMigrations(ctx, s)
				if err != nil {
					return wrapError("serve: apply migrations", err, "Run `pizzeria migrate --mode plan` to inspect the schema state.", 1)
				}
				a.log.Infow("Schema up to date", "applied", applied)
			}

			srv := server.New(server.Options{
				Store:     s,
				Log:       a.log.Named("http"),
				Tracer:    a.tracer,
				Collector: a.stats,
			})
			hs := &http.Server{
				Addr:         cfg.Server.Addr,
				ReadTimeout:  cfg.Server.ReadTimeout,
				WriteTimeout: cfg.Server.WriteTimeout,
			}
			if err := srv.Serve(ctx, hs, cfg.Server.ShutdownTimeout); err != nil {
				return wrapError("serve: "+err.Error(), err, "Check that server.addr is free.", 1)
			}

			snap := a.stats.Snapshot()
			a.log.Infow("Server stopped",
				"requests", snap.Requests,
				"status_classes", snap.StatusClasses,
				"queries", snap.Queries,
				"query_errors", snap.QueryErrors,
				"query_time", snap.QueryTime.String(),
			)
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides server.addr)")
	cmd.Flags().BoolVar(&autoMigrate, "migrate", true, "Apply pending migrations before serving (overrides database.auto_migrate)")
	return cmd
}
