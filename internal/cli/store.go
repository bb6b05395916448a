package cli

import (
	"context"

	"github.com/deicod/pizzeria/internal/config"
	"github.com/deicod/pizzeria/internal/logging"
	"github.com/deicod/pizzeria/orm/migrate"
	"github.com/deicod/pizzeria/orm/pg"
	"github.com/deicod/pizzeria/orm/runtime"
	"github.com/deicod/pizzeria/store"
	"github.com/deicod/pizzeria/store/pgstore"
	"github.com/deicod/pizzeria/store/sqlitestore"
)

// openStore opens the configured backend with query logging, tracing and
// metrics attached.
func (a *app) openStore(ctx context.Context) (store.Store, error) {
	observer := runtime.QueryObserver{
		Logger:     logging.QueryLogger(a.log.Named("db")),
		Tracer:     a.tracer,
		Collector:  a.stats,
		Correlator: logging.Correlator(),
	}
	db := a.cfg.Database

	switch db.Driver {
	case config.DriverPostgres:
		poolOpts := []pg.Option{pg.WithPoolConfig(pg.PoolConfig{
			MaxConns:        db.Pool.MaxConns,
			MinConns:        db.Pool.MinConns,
			MaxConnLifetime: db.Pool.MaxConnLifetime,
			MaxConnIdleTime: db.Pool.MaxConnIdleTime,
		})}
		if a.tracer != nil {
			poolOpts = append(poolOpts, pg.WithTracer(a.tracer))
		}
		s, err := pgstore.Open(ctx, db.URL, poolOpts, store.WithObserver(observer))
		if err != nil {
			return nil, wrapError("database: connect postgres "+store.RedactURL(db.URL), err, "Verify database.url (or DB_URI) and that the server is reachable.", 1)
		}
		return s, nil
	default:
		s, err := sqlitestore.Open(ctx, db.URL, a.log.Named("db"), store.WithObserver(observer))
		if err != nil {
			return nil, wrapError("database: open sqlite "+store.RedactURL(db.URL), err, "Check that the directory of database.url exists and is writable.", 1)
		}
		return s, nil
	}
}

// applyMigrations brings the schema up to date and returns the versions it
// applied.
func applyMigrations(ctx context.Context, s store.Store) ([]string, error) {
	switch st := s.(type) {
	case *pgstore.Store:
		applied, err := st.Migrate(ctx)
		if err != nil {
			return nil, err
		}
		return versions(applied), nil
	case *sqlitestore.Store:
		return st.Migrate(ctx)
	default:
		return nil, nil
	}
}

func versions(migs []migrate.Migration) []string {
	out := make([]string, 0, len(migs))
	for _, m := range migs {
		out = append(out, m.Version)
	}
	return out
}
