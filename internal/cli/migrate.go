package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/deicod/pizzeria/errors"
	"github.com/deicod/pizzeria/orm/migrate"
	"github.com/deicod/pizzeria/store"
	"github.com/deicod/pizzeria/store/pgstore"
)

func newMigrateCmd(a *app) *cobra.Command {
	var mode string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage SQL migrations for the configured database",
		RunE: func(cmd *cobra.Command, args []string) error {
			execMode := strings.ToLower(strings.TrimSpace(mode))
			if execMode == "" {
				execMode = "apply"
			}
			switch execMode {
			case "plan", "apply", "rollback":
			default:
				return CommandError{
					Message:    fmt.Sprintf("migrate: unsupported mode %q", execMode),
					Suggestion: "Use one of plan, apply, or rollback.",
					ExitCode:   2,
				}
			}

			ctx := cmd.Context()
			s, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer s.Close()
			return runMigrate(ctx, cmd.OutOrStdout(), s, execMode)
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "apply", "Select plan, apply, or rollback execution mode")
	return cmd
}

func runMigrate(ctx context.Context, out io.Writer, s store.Store, mode string) error {
	pgs, isPostgres := s.(*pgstore.Store)
	if !isPostgres && mode != "apply" {
		return CommandError{
			Message:    fmt.Sprintf("migrate: mode %q requires the postgres driver", mode),
			Suggestion: "SQLite databases only support --mode apply.",
			ExitCode:   2,
		}
	}

	switch mode {
	case "plan":
		plan, err := pgs.Plan(ctx)
		if err != nil {
			return migrateError("migrate: plan migrations", err)
		}
		if len(plan.Pending) == 0 {
			fmt.Fprintln(out, "migrate: database is up-to-date")
			return nil
		}
		for _, mig := range plan.Pending {
			fmt.Fprintf(out, "  pending: %s (%s)\n", mig.Version, mig.Name)
		}
		return nil
	case "rollback":
		reverted, err := pgs.Rollback(ctx)
		if err != nil {
			if errors.Is(err, migrate.ErrNoAppliedMigrations) {
				return CommandError{
					Message:    "migrate: no applied migrations to rollback",
					Suggestion: "Ensure at least one migration has been applied before running rollback.",
					ExitCode:   1,
				}
			}
			return migrateError("migrate: rollback", err)
		}
		fmt.Fprintf(out, "migrate: rolled back %s (%s)\n", reverted.Version, reverted.Name)
		return nil
	default:
		applied, err := applyMigrations(ctx, s)
		if err != nil {
			return migrateError("migrate: apply migrations", err)
		}
		if len(applied) == 0 {
			fmt.Fprintln(out, "migrate: database is up-to-date")
			return nil
		}
		fmt.Fprintf(out, "migrate: applied %s\n", strings.Join(applied, ", "))
		return nil
	}
}

func migrateError(message string, err error) error {
	var drift migrate.DriftError
	if errors.As(err, &drift) {
		return CommandError{
			Message:    fmt.Sprintf("migrate: schema drift detected for %s", strings.Join(drift.Missing, ", ")),
			Cause:      err,
			Suggestion: "Review applied migrations, restore the missing SQL files, or reconcile the database state before continuing.",
			ExitCode:   1,
		}
	}
	return wrapError(message, err, "Review the SQL error, fix the migration, and re-run `pizzeria migrate`.", 1)
}
