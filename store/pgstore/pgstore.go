// Package pgstore is the PostgreSQL record store, built on orm/pg and
// migrated with orm/migrate.
package pgstore

import (
	"context"
	"embed"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/deicod/pizzeria/errors"
	"github.com/deicod/pizzeria/model"
	"github.com/deicod/pizzeria/orm/migrate"
	"github.com/deicod/pizzeria/orm/pg"
	"github.com/deicod/pizzeria/orm/runtime"
	"github.com/deicod/pizzeria/store"
)

//go:embed migrations/*.sql
var Migrations embed.FS

const dialect = runtime.DialectPostgres

// Postgres SQLSTATE codes mapped onto store errors.
const (
	codeForeignKey = "23503"
	codeCheck      = "23514"
	codeNotNull    = "23502"
)

type Store struct {
	db   *pg.DB
	opts store.Options
}

var _ store.Store = (*Store)(nil)

// Open connects a pool to url and wraps it.
func Open(ctx context.Context, url string, poolOpts []pg.Option, opts ...store.Option) (*Store, error) {
	db, err := pg.Connect(ctx, url, poolOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "pgstore: connect")
	}
	return New(db, opts...), nil
}

// New wraps an existing handle. The store's observer replaces the handle's.
func New(db *pg.DB, opts ...store.Option) *Store {
	o := store.ResolveOptions(opts...)
	db.UseObserver(o.Observer)
	return &Store{db: db, opts: o}
}

func (s *Store) InTx(ctx context.Context, fn func(store.Tx) error) error {
	return s.db.InTx(ctx, func(t *pg.Tx) error {
		return fn(&tx{tx: t, opts: s.opts})
	})
}

func (s *Store) Close() error {
	s.db.Close()
	return nil
}

// Migrate applies pending schema migrations.
func (s *Store) Migrate(ctx context.Context) ([]migrate.Migration, error) {
	return migrate.Apply(ctx, s.db.Pool, Migrations)
}

// Plan reports pending schema migrations without applying them.
func (s *Store) Plan(ctx context.Context) (migrate.Plan, error) {
	return migrate.Inspect(ctx, s.db.Pool, Migrations)
}

// Rollback reverts the latest schema migration.
func (s *Store) Rollback(ctx context.Context) (migrate.Migration, error) {
	return migrate.Rollback(ctx, s.db.Pool, Migrations)
}

type tx struct {
	tx   *pg.Tx
	opts store.Options
}

func (t *tx) ListRestaurants(ctx context.Context) ([]model.Restaurant, error) {
	sql, args := store.ListSQL(dialect, model.EntityRestaurant, store.RestaurantColumns)
	return list(ctx, t, model.EntityRestaurant, sql, args, func(row pgx.CollectableRow) (model.Restaurant, error) {
		var r model.Restaurant
		err := row.Scan(&r.ID, &r.Name, &r.Address)
		return r, err
	})
}

func (t *tx) ListPizzas(ctx context.Context) ([]model.Pizza, error) {
	sql, args := store.ListSQL(dialect, model.EntityPizza, store.PizzaColumns)
	return list(ctx, t, model.EntityPizza, sql, args, func(row pgx.CollectableRow) (model.Pizza, error) {
		var p model.Pizza
		err := row.Scan(&p.ID, &p.Name, &p.Ingredients)
		return p, err
	})
}

func (t *tx) ListRestaurantPizzas(ctx context.Context, filter model.LinkFilter) ([]model.RestaurantPizza, error) {
	sql, args := store.ListSQL(dialect, model.EntityRestaurantPizza, store.RestaurantPizzaColumns, store.LinkPredicates(filter)...)
	return list(ctx, t, model.EntityRestaurantPizza, sql, args, scanLink)
}

func (t *tx) GetRestaurant(ctx context.Context, id int64) (model.Restaurant, error) {
	var r model.Restaurant
	err := t.get(ctx, model.EntityRestaurant, store.RestaurantColumns, id, &r.ID, &r.Name, &r.Address)
	return r, err
}

func (t *tx) GetPizza(ctx context.Context, id int64) (model.Pizza, error) {
	var p model.Pizza
	err := t.get(ctx, model.EntityPizza, store.PizzaColumns, id, &p.ID, &p.Name, &p.Ingredients)
	return p, err
}

func (t *tx) GetRestaurantPizza(ctx context.Context, id int64) (model.RestaurantPizza, error) {
	var l model.RestaurantPizza
	err := t.get(ctx, model.EntityRestaurantPizza, store.RestaurantPizzaColumns, id, &l.ID, &l.Price, &l.RestaurantID, &l.PizzaID)
	return l, err
}

func (t *tx) DeleteRestaurant(ctx context.Context, id int64) error {
	return t.deleteCascade(ctx, model.EntityRestaurant, "restaurant_id", id)
}

func (t *tx) DeletePizza(ctx context.Context, id int64) error {
	return t.deleteCascade(ctx, model.EntityPizza, "pizza_id", id)
}

func (t *tx) CreateRestaurant(ctx context.Context, r *model.Restaurant) error {
	if err := t.opts.Validate(ctx, model.EntityRestaurant, r.Record(), r); err != nil {
		return err
	}
	return t.insert(ctx, model.EntityRestaurant, []string{"name", "address"}, []any{r.Name, r.Address}, &r.ID)
}

func (t *tx) CreatePizza(ctx context.Context, p *model.Pizza) error {
	if err := t.opts.Validate(ctx, model.EntityPizza, p.Record(), p); err != nil {
		return err
	}
	return t.insert(ctx, model.EntityPizza, []string{"name", "ingredients"}, []any{p.Name, p.Ingredients}, &p.ID)
}

func (t *tx) CreateRestaurantPizza(ctx context.Context, link *model.RestaurantPizza) error {
	if err := t.opts.Validate(ctx, model.EntityRestaurantPizza, link.Record(), link); err != nil {
		return err
	}
	return t.insert(ctx, model.EntityRestaurantPizza,
		[]string{"price", "restaurant_id", "pizza_id"},
		[]any{link.Price, link.RestaurantID, link.PizzaID},
		&link.ID,
	)
}

func list[T any](ctx context.Context, t *tx, table, sql string, args []any, scan pgx.RowToFunc[T]) ([]T, error) {
	rows, err := t.tx.Query(ctx, runtime.OperationSelect, table, sql, args...)
	if err != nil {
		return nil, errors.Storage(err, "list "+table)
	}
	out, err := pgx.CollectRows(rows, scan)
	if err != nil {
		return nil, errors.Storage(err, "list "+table)
	}
	return out, nil
}

func scanLink(row pgx.CollectableRow) (model.RestaurantPizza, error) {
	var l model.RestaurantPizza
	err := row.Scan(&l.ID, &l.Price, &l.RestaurantID, &l.PizzaID)
	return l, err
}

func (t *tx) get(ctx context.Context, table string, columns []string, id int64, dest ...any) error {
	sql, args := store.GetSQL(dialect, table, columns, id)
	if err := t.tx.QueryRow(ctx, runtime.OperationSelect, table, sql, args...).Scan(dest...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return errors.NotFoundf("%s %d", table, id)
		}
		return errors.Storage(err, "get "+table)
	}
	return nil
}

// deleteCascade removes the dependent restaurant_pizzas before the row itself.
func (t *tx) deleteCascade(ctx context.Context, table, linkColumn string, id int64) error {
	sql, args := store.DeleteSQL(dialect, model.EntityRestaurantPizza, linkColumn, id)
	if _, err := t.tx.Exec(ctx, runtime.OperationDelete, model.EntityRestaurantPizza, sql, args...); err != nil {
		return errors.Storage(err, "delete "+model.EntityRestaurantPizza)
	}
	sql, args = store.DeleteSQL(dialect, table, "id", id)
	tag, err := t.tx.Exec(ctx, runtime.OperationDelete, table, sql, args...)
	if err != nil {
		return errors.Storage(err, "delete "+table)
	}
	if tag.RowsAffected() == 0 {
		return errors.NotFoundf("%s %d", table, id)
	}
	return nil
}

func (t *tx) insert(ctx context.Context, table string, columns []string, values []any, id *int64) error {
	sql, args, err := store.InsertSQL(dialect, table, columns, values...)
	if err != nil {
		return errors.Wrapf(err, "insert %s", table)
	}
	if err := t.tx.QueryRow(ctx, runtime.OperationInsert, table, sql, args...).Scan(id); err != nil {
		return classify(err, "insert "+table)
	}
	return nil
}

// classify maps constraint violations onto the store error sentinels.
func classify(err error, op string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeForeignKey:
			return errors.Mark(errors.Wrapf(err, "%s: %s", op, pgErr.ConstraintName), errors.ErrIntegrity)
		case codeCheck, codeNotNull:
			return errors.Mark(errors.Wrapf(err, "%s: %s", op, pgErr.ConstraintName), errors.ErrValidation)
		}
	}
	return errors.Storage(err, op)
}
