package cli

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/deicod/pizzeria/errors"
	"github.com/deicod/pizzeria/internal/cli/doctor"
	"github.com/deicod/pizzeria/model"
	"github.com/deicod/pizzeria/store"
	"github.com/deicod/pizzeria/store/pgstore"
)

func newDoctorCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration, database connectivity and schema state",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			var s store.Store
			defer func() {
				if s != nil {
					_ = s.Close()
				}
			}()

			results := doctor.Run(ctx,
				a.checkConfigFile,
				func(ctx context.Context) doctor.Result {
					res, opened := a.checkDatabase(ctx)
					s = opened
					return res
				},
				func(ctx context.Context) doctor.Result { return checkSchema(ctx, s) },
				func(ctx context.Context) doctor.Result { return checkRecords(ctx, s) },
				a.checkTracing,
			)

			printer := doctor.NewPrinter(cmd.OutOrStdout())
			printer.PrintHeader("pizzeria doctor")
			printer.PrintSystem(runtime.GOOS, runtime.GOARCH, runtime.Version())
			for _, res := range results {
				printer.PrintCheck(res)
			}
			printer.Summary(results, "Resolve errors above then re-run 'pizzeria doctor'.")
			if doctor.HasFailures(results) {
				return CommandError{Message: "doctor: one or more checks failed", ExitCode: 1}
			}
			return nil
		},
	}
	return cmd
}

func (a *app) checkConfigFile(context.Context) doctor.Result {
	const name = "config file"
	path := a.configFile
	if path == "" {
		path = "pizzeria.yaml"
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return doctor.Result{Name: name, Status: doctor.StatusWarn, Details: "no " + path + "; using defaults and environment"}
		}
		return doctor.Result{Name: name, Status: doctor.StatusError, Details: err.Error()}
	}
	return doctor.Result{Name: name, Status: doctor.StatusOK, Details: path}
}

func (a *app) checkDatabase(ctx context.Context) (doctor.Result, store.Store) {
	const name = "database"
	s, err := a.openStore(ctx)
	if err != nil {
		return doctor.Result{Name: name, Status: doctor.StatusError, Details: errors.UnwrapAll(err).Error()}, nil
	}
	return doctor.Result{Name: name, Status: doctor.StatusOK, Details: a.cfg.Database.Driver}, s
}

func checkSchema(ctx context.Context, s store.Store) doctor.Result {
	const name = "schema"
	if s == nil {
		return doctor.Result{Name: name, Status: doctor.StatusWarn, Details: "skipped; database unavailable"}
	}
	if pgs, ok := s.(*pgstore.Store); ok {
		plan, err := pgs.Plan(ctx)
		if err != nil {
			return doctor.Result{Name: name, Status: doctor.StatusError, Details: err.Error()}
		}
		if n := len(plan.Pending); n > 0 {
			return doctor.Result{Name: name, Status: doctor.StatusError, Details: fmt.Sprintf("%d pending migration(s); run 'pizzeria migrate'", n)}
		}
		return doctor.Result{Name: name, Status: doctor.StatusOK, Details: fmt.Sprintf("%d migration(s) applied", len(plan.Applied))}
	}
	err := s.InTx(ctx, func(tx store.Tx) error {
		_, err := tx.ListRestaurantPizzas(ctx, model.LinkFilter{})
		return err
	})
	if err != nil {
		return doctor.Result{Name: name, Status: doctor.StatusError, Details: "tables missing; run 'pizzeria migrate'"}
	}
	return doctor.Result{Name: name, Status: doctor.StatusOK}
}

func checkRecords(ctx context.Context, s store.Store) doctor.Result {
	const name = "records"
	if s == nil {
		return doctor.Result{Name: name, Status: doctor.StatusWarn, Details: "skipped; database unavailable"}
	}
	var catalog *model.Catalog
	err := s.InTx(ctx, func(tx store.Tx) (err error) {
		catalog, err = model.LoadCatalog(ctx, tx)
		return err
	})
	if err != nil {
		return doctor.Result{Name: name, Status: doctor.StatusWarn, Details: "skipped; schema unavailable"}
	}
	details := fmt.Sprintf("%d restaurants, %d pizzas, %d restaurant_pizzas",
		catalog.RestaurantCount(), catalog.PizzaCount(), catalog.LinkCount())
	if catalog.RestaurantCount() == 0 && catalog.PizzaCount() == 0 {
		return doctor.Result{Name: name, Status: doctor.StatusWarn, Details: "empty; run 'pizzeria seed'"}
	}
	return doctor.Result{Name: name, Status: doctor.StatusOK, Details: details}
}

func (a *app) checkTracing(context.Context) doctor.Result {
	if !a.cfg.Tracing.Enabled {
		return doctor.Result{Name: "tracing", Status: doctor.StatusOK, Details: "disabled"}
	}
	return doctor.Result{Name: "tracing", Status: doctor.StatusOK, Details: "enabled as " + a.cfg.Tracing.ServiceName}
}
