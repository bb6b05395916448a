package pgstore

import (
	"context"
	"regexp"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deicod/pizzeria/errors"
	"github.com/deicod/pizzeria/model"
	"github.com/deicod/pizzeria/orm/migrate"
	"github.com/deicod/pizzeria/orm/pg"
	"github.com/deicod/pizzeria/orm/runtime"
	"github.com/deicod/pizzeria/store"
)

func newMockStore(t *testing.T, opts ...store.Option) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return New(&pg.DB{Pool: mock}, opts...), mock
}

func TestListRestaurants(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBeginTx(pgx.TxOptions{})
	mock.ExpectQuery("SELECT id, name, address FROM restaurants ORDER BY id ASC").
		WillReturnRows(mock.NewRows([]string{"id", "name", "address"}).
			AddRow(int64(1), "Karen's Pizza Shack", "address1").
			AddRow(int64(2), "Sanjay's Pizza", "address2"))
	mock.ExpectCommit()

	var got []model.Restaurant
	err := s.InTx(context.Background(), func(tx store.Tx) error {
		var err error
		got, err = tx.ListRestaurants(context.Background())
		return err
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Sanjay's Pizza", got[1].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListFailureIsStorageError(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBeginTx(pgx.TxOptions{})
	mock.ExpectQuery("SELECT id, name, ingredients FROM pizzas ORDER BY id ASC").
		WillReturnError(errors.New("connection reset by peer"))
	mock.ExpectRollback()

	err := s.InTx(context.Background(), func(tx store.Tx) error {
		_, err := tx.ListPizzas(context.Background())
		return err
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrStorage))
	assert.Contains(t, err.Error(), "connection reset by peer")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetRestaurantNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBeginTx(pgx.TxOptions{})
	mock.ExpectQuery("SELECT id, name, address FROM restaurants WHERE id = $1").
		WithArgs(int64(42)).
		WillReturnRows(mock.NewRows([]string{"id", "name", "address"}))
	mock.ExpectRollback()

	err := s.InTx(context.Background(), func(tx store.Tx) error {
		_, err := tx.GetRestaurant(context.Background(), 42)
		return err
	})
	assert.True(t, errors.IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListRestaurantPizzasFiltered(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBeginTx(pgx.TxOptions{})
	mock.ExpectQuery("SELECT id, price, restaurant_id, pizza_id FROM restaurant_pizzas WHERE restaurant_id = $1 AND pizza_id = $2 ORDER BY id ASC").
		WithArgs(int64(1), int64(2)).
		WillReturnRows(mock.NewRows([]string{"id", "price", "restaurant_id", "pizza_id"}).AddRow(int64(3), 12, int64(1), int64(2)))
	mock.ExpectCommit()

	err := s.InTx(context.Background(), func(tx store.Tx) error {
		links, err := tx.ListRestaurantPizzas(context.Background(), model.LinkFilter{RestaurantID: 1, PizzaID: 2})
		if err != nil {
			return err
		}
		assert.Equal(t, []model.RestaurantPizza{{ID: 3, Price: 12, RestaurantID: 1, PizzaID: 2}}, links)
		return nil
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteRestaurantCascades(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBeginTx(pgx.TxOptions{})
	mock.ExpectExec("DELETE FROM restaurant_pizzas WHERE restaurant_id = $1").
		WithArgs(int64(1)).WillReturnResult(pgxmock.NewResult("DELETE", 2))
	mock.ExpectExec("DELETE FROM restaurants WHERE id = $1").
		WithArgs(int64(1)).WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectCommit()

	err := s.InTx(context.Background(), func(tx store.Tx) error {
		return tx.DeleteRestaurant(context.Background(), 1)
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeletePizzaMissing(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBeginTx(pgx.TxOptions{})
	mock.ExpectExec("DELETE FROM restaurant_pizzas WHERE pizza_id = $1").
		WithArgs(int64(9)).WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec("DELETE FROM pizzas WHERE id = $1").
		WithArgs(int64(9)).WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectRollback()

	err := s.InTx(context.Background(), func(tx store.Tx) error {
		return tx.DeletePizza(context.Background(), 9)
	})
	assert.True(t, errors.IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateRestaurantPizza(t *testing.T) {
	var ops []runtime.QueryOperation
	observer := runtime.QueryObserver{Logger: runtime.QueryLoggerFunc(func(_ context.Context, entry runtime.QueryLog) {
		ops = append(ops, entry.Operation)
	})}
	s, mock := newMockStore(t, store.WithObserver(observer))

	mock.ExpectBeginTx(pgx.TxOptions{})
	mock.ExpectQuery("INSERT INTO restaurant_pizzas (price, restaurant_id, pizza_id) VALUES ($1, $2, $3) RETURNING id").
		WithArgs(15, int64(1), int64(2)).
		WillReturnRows(mock.NewRows([]string{"id"}).AddRow(int64(7)))
	mock.ExpectCommit()

	link := model.RestaurantPizza{Price: 15, RestaurantID: 1, PizzaID: 2}
	err := s.InTx(context.Background(), func(tx store.Tx) error {
		return tx.CreateRestaurantPizza(context.Background(), &link)
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), link.ID)
	assert.Equal(t, []runtime.QueryOperation{runtime.OperationInsert}, ops)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateRestaurantPizzaRejectsPriceBeforeSQL(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBeginTx(pgx.TxOptions{})
	mock.ExpectRollback()

	err := s.InTx(context.Background(), func(tx store.Tx) error {
		return tx.CreateRestaurantPizza(context.Background(), &model.RestaurantPizza{Price: 31, RestaurantID: 1, PizzaID: 2})
	})
	assert.True(t, errors.Is(err, errors.ErrValidation))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateClassifiesConstraintErrors(t *testing.T) {
	cases := []struct {
		name     string
		pgErr    *pgconn.PgError
		sentinel error
	}{
		{"foreign key", &pgconn.PgError{Code: codeForeignKey, ConstraintName: "fk_restaurant_pizzas_restaurant_id_restaurants"}, errors.ErrIntegrity},
		{"check", &pgconn.PgError{Code: codeCheck, ConstraintName: "ck_restaurant_pizzas_price"}, errors.ErrValidation},
		{"other", &pgconn.PgError{Code: "53300"}, errors.ErrStorage},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			// Validation is disabled so the statement reaches the database.
			s, mock := newMockStore(t, store.WithRules(nil))

			mock.ExpectBeginTx(pgx.TxOptions{})
			mock.ExpectQuery("INSERT INTO restaurant_pizzas (price, restaurant_id, pizza_id) VALUES ($1, $2, $3) RETURNING id").
				WithArgs(0, int64(99), int64(2)).
				WillReturnError(tc.pgErr)
			mock.ExpectRollback()

			err := s.InTx(context.Background(), func(tx store.Tx) error {
				return tx.CreateRestaurantPizza(context.Background(), &model.RestaurantPizza{Price: 0, RestaurantID: 99, PizzaID: 2})
			})
			assert.True(t, errors.Is(err, tc.sentinel), "got %v", err)
			assert.Contains(t, err.Error(), tc.pgErr.ConstraintName)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestCreateRestaurantAndPizza(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBeginTx(pgx.TxOptions{})
	mock.ExpectQuery("INSERT INTO restaurants (name, address) VALUES ($1, $2) RETURNING id").
		WithArgs("A", "1 St").WillReturnRows(mock.NewRows([]string{"id"}).AddRow(int64(1)))
	mock.ExpectQuery("INSERT INTO pizzas (name, ingredients) VALUES ($1, $2) RETURNING id").
		WithArgs("Cheese", "Dough, Cheese").WillReturnRows(mock.NewRows([]string{"id"}).AddRow(int64(1)))
	mock.ExpectRollback()

	r := model.Restaurant{Name: "A", Address: "1 St"}
	p := model.Pizza{Name: "Cheese", Ingredients: "Dough, Cheese"}
	err := s.InTx(context.Background(), func(tx store.Tx) error {
		if err := tx.CreateRestaurant(context.Background(), &r); err != nil {
			return err
		}
		if err := tx.CreatePizza(context.Background(), &p); err != nil {
			return err
		}
		return tx.CreatePizza(context.Background(), &model.Pizza{Name: "", Ingredients: "x"})
	})
	assert.True(t, errors.Is(err, errors.ErrValidation), "blank pizza name is rejected")
	assert.Equal(t, int64(1), r.ID)
	assert.Equal(t, int64(1), p.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrationsAreEmbedded(t *testing.T) {
	migs, err := migrate.Discover(context.Background(), Migrations, "migrations")
	require.NoError(t, err)
	require.Len(t, migs, 2)
	assert.Equal(t, migrate.Down, migs[0].Direction)
	assert.Equal(t, "001_init.sql", migs[1].Name)

	raw, err := Migrations.ReadFile("migrations/001_init.sql")
	require.NoError(t, err)
	for _, name := range []string{
		"fk_restaurant_pizzas_restaurant_id_restaurants",
		"fk_restaurant_pizzas_pizza_id_pizzas",
		"ck_restaurant_pizzas_price",
		"ON DELETE CASCADE",
	} {
		assert.Contains(t, string(raw), name)
	}
}

func TestMigrateAppliesEmbeddedSchema(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	s := New(&pg.DB{Pool: mock})

	raw, err := Migrations.ReadFile("migrations/001_init.sql")
	require.NoError(t, err)

	mock.ExpectBeginTx(pgx.TxOptions{})
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock($1)")).WithArgs(pgxmock.AnyArg()).WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS pizzeria_schema_migrations").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectQuery("SELECT version FROM pizzeria_schema_migrations").WillReturnRows(mock.NewRows([]string{"version"}))
	mock.ExpectExec(regexp.QuoteMeta(string(raw))).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec("INSERT INTO pizzeria_schema_migrations").WithArgs("001", "001_init.sql").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	ran, err := s.Migrate(context.Background())
	require.NoError(t, err)
	require.Len(t, ran, 1)
	assert.Equal(t, "001", ran[0].Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}
