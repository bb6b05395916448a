package pg

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/deicod/pizzeria/errors"
	"github.com/deicod/pizzeria/observability/tracing"
	"github.com/deicod/pizzeria/orm/runtime"
)

// Pool exposes the subset of pgxpool behaviour required by the record store.
type Pool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
	Close()
}

var _ Pool = (*pgxpool.Pool)(nil)

// DB wraps a pool with the query observer applied to every statement.
type DB struct {
	Pool     Pool
	Observer runtime.QueryObserver
}

// PoolConfig describes connection pool tuning knobs exposed via configuration.
type PoolConfig struct {
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// Option configures pgx connections.
type Option func(*pgxpool.Config)

// Connect initialises a pgx pool with optional configuration overrides.
func Connect(ctx context.Context, url string, opts ...Option) (*DB, error) {
	cfg, err := newPoolConfig(url, opts...)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &DB{Pool: pool}, nil
}

// Close releases the underlying pool.
func (db *DB) Close() {
	if db == nil || db.Pool == nil {
		return
	}
	db.Pool.Close()
}

// UseObserver attaches a query observer to the database handle.
func (db *DB) UseObserver(observer runtime.QueryObserver) {
	if db == nil {
		return
	}
	db.Observer = observer
}

// InTx runs fn inside a transaction. The transaction commits when fn returns nil and
// rolls back when fn returns an error or panics.
func (db *DB) InTx(ctx context.Context, fn func(*Tx) error) (err error) {
	if db == nil || db.Pool == nil {
		return errors.Mark(errors.New("pg: pool unavailable"), errors.ErrStorage)
	}
	ctx, span := tracing.OrNoop(db.Observer.Tracer).Start(ctx, "db.tx")
	defer func() { span.End(err) }()

	tx, err := db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.Storage(err, "begin transaction")
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	if err = fn(&Tx{tx: tx, observer: db.Observer}); err != nil {
		return err
	}
	if err = tx.Commit(ctx); err != nil {
		return errors.Storage(err, "commit transaction")
	}
	committed = true
	return nil
}

// Tx issues observed statements on an open transaction.
type Tx struct {
	tx       pgx.Tx
	observer runtime.QueryObserver
}

// Query runs a statement returning rows. The observation ends when the rows are
// closed and carries any error met while reading them.
func (t *Tx) Query(ctx context.Context, op runtime.QueryOperation, table, sql string, args ...any) (pgx.Rows, error) {
	obs := t.observer.Observe(ctx, op, table, sql, args, runtime.WithObservationAttributes(tracing.Bool("db.tx", true)))
	rows, err := t.tx.Query(obs.Context(), sql, args...)
	if err != nil {
		obs.End(err)
		return nil, err
	}
	return &observedRows{Rows: rows, obs: obs}, nil
}

// QueryRow runs a statement returning a single row. The observation ends on Scan.
func (t *Tx) QueryRow(ctx context.Context, op runtime.QueryOperation, table, sql string, args ...any) pgx.Row {
	obs := t.observer.Observe(ctx, op, table, sql, args, runtime.WithObservationAttributes(tracing.Bool("db.tx", true)))
	return &observedRow{Row: t.tx.QueryRow(obs.Context(), sql, args...), obs: obs}
}

// Exec runs a statement without rows.
func (t *Tx) Exec(ctx context.Context, op runtime.QueryOperation, table, sql string, args ...any) (pgconn.CommandTag, error) {
	obs := t.observer.Observe(ctx, op, table, sql, args, runtime.WithObservationAttributes(tracing.Bool("db.tx", true)))
	tag, err := t.tx.Exec(obs.Context(), sql, args...)
	obs.End(err)
	return tag, err
}

type observedRow struct {
	pgx.Row
	obs  runtime.QueryObservation
	once sync.Once
}

func (r *observedRow) Scan(dest ...any) error {
	err := r.Row.Scan(dest...)
	r.once.Do(func() {
		if errors.Is(err, pgx.ErrNoRows) {
			r.obs.End(nil)
			return
		}
		r.obs.End(err)
	})
	return err
}

type observedRows struct {
	pgx.Rows
	obs  runtime.QueryObservation
	once sync.Once
}

func (r *observedRows) Close() {
	r.Rows.Close()
	r.once.Do(func() { r.obs.End(r.Rows.Err()) })
}

func newPoolConfig(url string, opts ...Option) (*pgxpool.Config, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(cfg)
	}
	return cfg, nil
}

func applyDefaults(cfg *pgxpool.Config) {
	cfg.MaxConns = 10
	cfg.MinConns = 2
	cfg.MaxConnLifetime = time.Hour
}

// WithPoolConfig applies a group of pool settings derived from configuration.
// Zero values keep the defaults.
func WithPoolConfig(pc PoolConfig) Option {
	return func(cfg *pgxpool.Config) {
		if pc.MaxConns > 0 {
			cfg.MaxConns = pc.MaxConns
		}
		if pc.MinConns > 0 {
			cfg.MinConns = pc.MinConns
		}
		if pc.MaxConnLifetime > 0 {
			cfg.MaxConnLifetime = pc.MaxConnLifetime
		}
		if pc.MaxConnIdleTime > 0 {
			cfg.MaxConnIdleTime = pc.MaxConnIdleTime
		}
	}
}

// WithTracer enables pgx tracing using the provided tracer abstraction.
func WithTracer(tracer tracing.Tracer) Option {
	return func(cfg *pgxpool.Config) {
		if tracer == nil {
			cfg.ConnConfig.Tracer = nil
			return
		}
		cfg.ConnConfig.Tracer = newPGXTracer(tracer)
	}
}
