package testkit

import (
	"context"
	stdtesting "testing"

	pgxmock "github.com/pashagolub/pgxmock/v4"

	"github.com/deicod/pizzeria/orm/pg"
	"github.com/deicod/pizzeria/store"
	"github.com/deicod/pizzeria/store/pgstore"
)

// Sandbox encapsulates a mocked Postgres pool and cancellable context for tests.
type Sandbox struct {
	ctx    context.Context
	cancel context.CancelFunc
	mock   pgxmock.PgxPoolIface
	db     *pg.DB
	store  *pgstore.Store
}

// NewPostgresSandbox returns a sandbox backed by pgxmock with QueryMatcherEqual semantics.
//
// Tests configure expectations through Mock and run transactions through Store.
func NewPostgresSandbox(tb stdtesting.TB, opts ...store.Option) *Sandbox {
	tb.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherEqual))
	if err != nil {
		cancel()
		tb.Fatalf("pgxmock.NewPool: %v", err)
	}
	db := &pg.DB{Pool: mock}
	sandbox := &Sandbox{
		ctx:    ctx,
		cancel: cancel,
		mock:   mock,
		db:     db,
		store:  pgstore.New(db, opts...),
	}
	tb.Cleanup(sandbox.Close)
	return sandbox
}

// Context returns the sandbox context.
func (s *Sandbox) Context() context.Context {
	if s == nil {
		return context.Background()
	}
	return s.ctx
}

// Mock exposes the underlying pgxmock pool for expectation management.
func (s *Sandbox) Mock() pgxmock.PgxPoolIface {
	if s == nil {
		return nil
	}
	return s.mock
}

// DB returns the pg.DB wrapper bound to the sandbox pool.
func (s *Sandbox) DB() *pg.DB {
	if s == nil {
		return nil
	}
	return s.db
}

// Store returns the PostgreSQL store running on the mocked pool.
func (s *Sandbox) Store() *pgstore.Store {
	if s == nil {
		return nil
	}
	return s.store
}

// Close releases sandbox resources. Tests typically rely on the registered cleanup to invoke it.
func (s *Sandbox) Close() {
	if s == nil {
		return
	}
	if s.cancel != nil {
		s.cancel()
	}
	if s.mock != nil {
		s.mock.Close()
	}
}

// ExpectationsWereMet fails the supplied test if outstanding pgxmock expectations remain.
func (s *Sandbox) ExpectationsWereMet(tb stdtesting.TB) {
	if s == nil {
		return
	}
	tb.Helper()
	if err := s.mock.ExpectationsWereMet(); err != nil {
		tb.Fatalf("pgx expectations: %v", err)
	}
}
