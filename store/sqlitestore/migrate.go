package sqlitestore

import (
	"context"
	"embed"
	"path"

	"github.com/deicod/pizzeria/errors"
	"github.com/deicod/pizzeria/orm/migrate"
)

//go:embed migrations/*.sql
var migrations embed.FS

const migrationsDir = "migrations"

// Migrate applies pending migrations, each in its own transaction, and
// returns the versions it applied. 000 creates schema_migrations itself.
func (s *Store) Migrate(ctx context.Context) ([]string, error) {
	files, err := migrate.Discover(ctx, migrations, migrationsDir)
	if err != nil {
		return nil, errors.Wrap(err, "read migrations")
	}

	var applied []string
	for _, file := range files {
		if file.Direction != migrate.Up {
			continue
		}
		var exists bool
		err := s.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = ?)", file.Version).Scan(&exists)
		if err != nil {
			// Table doesn't exist yet, this must be migration 000.
			if file.Version != "000" {
				return applied, errors.Newf("schema_migrations table missing, but migration is not 000: %s", file.Name)
			}
		} else if exists {
			if s.log != nil {
				s.log.Debugw("Skipping migration (already applied)", "migration", file.Name, "version", file.Version)
			}
			continue
		}

		raw, err := migrations.ReadFile(path.Join(migrationsDir, file.Name))
		if err != nil {
			return applied, errors.Wrapf(err, "read %s", file.Name)
		}
		if s.log != nil {
			s.log.Infow("Applying migration", "migration", file.Name, "version", file.Version)
		}

		sqlTx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return applied, errors.Wrapf(err, "begin tx for %s", file.Name)
		}
		if _, err := sqlTx.ExecContext(ctx, string(raw)); err != nil {
			_ = sqlTx.Rollback()
			return applied, errors.Wrapf(err, "execute %s", file.Name)
		}
		if _, err := sqlTx.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES (?)", file.Version); err != nil {
			_ = sqlTx.Rollback()
			return applied, errors.Wrapf(err, "record %s", file.Name)
		}
		if err := sqlTx.Commit(); err != nil {
			return applied, errors.Wrapf(err, "commit %s", file.Name)
		}
		applied = append(applied, file.Version)
	}

	if s.log != nil {
		s.log.Infow("Migrations complete", "applied", len(applied), "total_migrations", len(files))
	}
	return applied, nil
}
