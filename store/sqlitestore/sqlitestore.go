// Package sqlitestore is the SQLite record store. Every connection is opened
// with foreign keys enforced, WAL journaling and a busy timeout.
package sqlitestore

import (
	"context"
	"database/sql"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/deicod/pizzeria/errors"
	"github.com/deicod/pizzeria/model"
	"github.com/deicod/pizzeria/observability/tracing"
	"github.com/deicod/pizzeria/orm/runtime"
	"github.com/deicod/pizzeria/store"
)

const dialect = runtime.DialectSQLite

// connParams are appended to every DSN so each pooled connection gets them.
var connParams = []string{"_foreign_keys=on", "_journal_mode=WAL", "_busy_timeout=5000"}

type Store struct {
	db   *sql.DB
	opts store.Options
	log  *zap.SugaredLogger
}

var _ store.Store = (*Store)(nil)

// Open opens the database named by url. Plain paths, file: URIs and
// sqlite:/// URLs are accepted.
func Open(ctx context.Context, url string, log *zap.SugaredLogger, opts ...store.Option) (*Store, error) {
	dsn := DSN(url)
	redacted := store.RedactURL(url)
	if log != nil {
		log.Debugw("Opening database", "dsn", store.RedactURL(dsn))
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "failed to open database %s", redacted)
	}
	if log != nil {
		log.Infow("Database opened successfully",
			"url", redacted,
			"wal_mode", true,
			"foreign_keys", true,
		)
	}
	s := New(db, opts...)
	s.log = log
	return s, nil
}

// New wraps an already opened handle.
func New(db *sql.DB, opts ...store.Option) *Store {
	return &Store{db: db, opts: store.ResolveOptions(opts...)}
}

// DSN turns a database URL into a go-sqlite3 DSN carrying connParams.
func DSN(url string) string {
	dsn := strings.TrimSpace(url)
	for _, prefix := range []string{"sqlite3:///", "sqlite:///"} {
		if strings.HasPrefix(dsn, prefix) {
			dsn = "file:" + strings.TrimPrefix(dsn, prefix)
			break
		}
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	var extra []string
	for _, p := range connParams {
		key := p[:strings.IndexByte(p, '=')+1]
		if !strings.Contains(dsn, key) {
			extra = append(extra, p)
		}
	}
	if len(extra) == 0 {
		return dsn
	}
	return dsn + sep + strings.Join(extra, "&")
}

// DB exposes the underlying handle.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) InTx(ctx context.Context, fn func(store.Tx) error) (err error) {
	ctx, span := tracing.OrNoop(s.opts.Observer.Tracer).Start(ctx, "db.tx", tracing.String("db.system", "sqlite"))
	defer func() { span.End(err) }()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Storage(err, "begin transaction")
	}
	committed := false
	defer func() {
		if !committed {
			_ = sqlTx.Rollback()
		}
	}()

	if err = fn(&tx{tx: sqlTx, opts: s.opts}); err != nil {
		return err
	}
	if err = sqlTx.Commit(); err != nil {
		return errors.Storage(err, "commit transaction")
	}
	committed = true
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

type tx struct {
	tx   *sql.Tx
	opts store.Options
}

func (t *tx) ListRestaurants(ctx context.Context) ([]model.Restaurant, error) {
	query, args := store.ListSQL(dialect, model.EntityRestaurant, store.RestaurantColumns)
	return list(ctx, t, model.EntityRestaurant, query, args, func(rows *sql.Rows) (model.Restaurant, error) {
		var r model.Restaurant
		err := rows.Scan(&r.ID, &r.Name, &r.Address)
		return r, err
	})
}

func (t *tx) ListPizzas(ctx context.Context) ([]model.Pizza, error) {
	query, args := store.ListSQL(dialect, model.EntityPizza, store.PizzaColumns)
	return list(ctx, t, model.EntityPizza, query, args, func(rows *sql.Rows) (model.Pizza, error) {
		var p model.Pizza
		err := rows.Scan(&p.ID, &p.Name, &p.Ingredients)
		return p, err
	})
}

func (t *tx) ListRestaurantPizzas(ctx context.Context, filter model.LinkFilter) ([]model.RestaurantPizza, error) {
	query, args := store.ListSQL(dialect, model.EntityRestaurantPizza, store.RestaurantPizzaColumns, store.LinkPredicates(filter)...)
	return list(ctx, t, model.EntityRestaurantPizza, query, args, func(rows *sql.Rows) (model.RestaurantPizza, error) {
		var l model.RestaurantPizza
		err := rows.Scan(&l.ID, &l.Price, &l.RestaurantID, &l.PizzaID)
		return l, err
	})
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

func list[T any](ctx context.Context, t *tx, table, query string, args []any, scan func(*sql.Rows) (T, error)) (out []T, err error) {
	obs := t.opts.Observer.Observe(ctx, runtime.OperationSelect, table, query, args)
	defer func() { obs.End(err) }()

	rows, err := t.tx.QueryContext(obs.Context(), query, args...)
	if err != nil {
		return nil, errors.Storage(err, "list "+table)
	}
	defer rows.Close()

	out = []T{}
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, errors.Storage(err, "list "+table)
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Storage(err, "list "+table)
	}
	return out, nil
}

func (t *tx) get(ctx context.Context, table string, columns []string, id int64, dest ...any) (err error) {
	query, args := store.GetSQL(dialect, table, columns, id)
	obs := t.opts.Observer.Observe(ctx, runtime.OperationSelect, table, query, args)
	defer func() {
		if errors.IsNotFound(err) {
			obs.End(nil)
			return
		}
		obs.End(err)
	}()

	if err := t.tx.QueryRowContext(obs.Context(), query, args...).Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errors.NotFoundf("%s %d", table, id)
		}
		return errors.Storage(err, "get "+table)
	}
	return nil
}

func (t *tx) exec(ctx context.Context, table, query string, args []any) (n int64, err error) {
	obs := t.opts.Observer.Observe(ctx, runtime.OperationDelete, table, query, args)
	defer func() { obs.End(err) }()

	res, err := t.tx.ExecContext(obs.Context(), query, args...)
	if err != nil {
		return 0, errors.Storage(err, "delete "+table)
	}
	n, err = res.RowsAffected()
	if err != nil {
		return 0, errors.Storage(err, "delete "+table)
	}
	return n, nil
}

// deleteCascade removes the dependent restaurant_pizzas before the row itself.
func (t *tx) deleteCascade(ctx context.Context, table, linkColumn string, id int64) error {
	query, args := store.DeleteSQL(dialect, model.EntityRestaurantPizza, linkColumn, id)
	if _, err := t.exec(ctx, model.EntityRestaurantPizza, query, args); err != nil {
		return err
	}
	query, args = store.DeleteSQL(dialect, table, "id", id)
	n, err := t.exec(ctx, table, query, args)
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.NotFoundf("%s %d", table, id)
	}
	return nil
}

func (t *tx) insert(ctx context.Context, table string, columns []string, values []any, id *int64) (err error) {
	query, args, err := store.InsertSQL(dialect, table, columns, values...)
	if err != nil {
		return errors.Wrapf(err, "insert %s", table)
	}
	obs := t.opts.Observer.Observe(ctx, runtime.OperationInsert, table, query, args)
	defer func() { obs.End(err) }()

	if err := t.tx.QueryRowContext(obs.Context(), query, args...).Scan(id); err != nil {
		return classify(err, "insert "+table)
	}
	return nil
}
