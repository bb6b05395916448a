package testkit

import (
	"context"
	"path/filepath"
	stdtesting "testing"

	"go.uber.org/zap/zaptest"

	"github.com/deicod/pizzeria/model"
	"github.com/deicod/pizzeria/store"
	"github.com/deicod/pizzeria/store/sqlitestore"
)

// NewSQLiteStore opens and migrates a SQLite database in a temporary
// directory. The store is closed when the test ends.
func NewSQLiteStore(tb stdtesting.TB, opts ...store.Option) *sqlitestore.Store {
	tb.Helper()
	ctx := context.Background()
	s, err := sqlitestore.Open(ctx, filepath.Join(tb.TempDir(), "pizzeria.db"), zaptest.NewLogger(tb).Sugar(), opts...)
	if err != nil {
		tb.Fatalf("open sqlite store: %v", err)
	}
	tb.Cleanup(func() { _ = s.Close() })
	if _, err := s.Migrate(ctx); err != nil {
		tb.Fatalf("migrate sqlite store: %v", err)
	}
	return s
}

// Fixture records the ids Seed assigned.
type Fixture struct {
	Restaurants []model.Restaurant
	Pizzas      []model.Pizza
}

// Seed inserts restaurants and pizzas in one transaction and returns them
// with their generated ids.
func Seed(tb stdtesting.TB, s store.Store, restaurants []model.Restaurant, pizzas []model.Pizza) Fixture {
	tb.Helper()
	out := Fixture{
		Restaurants: append([]model.Restaurant(nil), restaurants...),
		Pizzas:      append([]model.Pizza(nil), pizzas...),
	}
	err := s.InTx(context.Background(), func(tx store.Tx) error {
		for i := range out.Restaurants {
			if err := tx.CreateRestaurant(context.Background(), &out.Restaurants[i]); err != nil {
				return err
			}
		}
		for i := range out.Pizzas {
			if err := tx.CreatePizza(context.Background(), &out.Pizzas[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		tb.Fatalf("seed store: %v", err)
	}
	return out
}

// Link inserts a restaurant_pizza and fails the test on error.
func Link(tb stdtesting.TB, s store.Store, price int, restaurantID, pizzaID int64) model.RestaurantPizza {
	tb.Helper()
	link := model.RestaurantPizza{Price: price, RestaurantID: restaurantID, PizzaID: pizzaID}
	err := s.InTx(context.Background(), func(tx store.Tx) error {
		return tx.CreateRestaurantPizza(context.Background(), &link)
	})
	if err != nil {
		tb.Fatalf("create restaurant_pizza: %v", err)
	}
	return link
}
