// Package model holds the restaurant, pizza and restaurant_pizza records, the
// cycle-free forms they are rendered as, and the operations request handlers
// run against an open store transaction.
package model

import (
	"context"

	"github.com/deicod/pizzeria/orm/runtime/validation"
)

// Entity names double as table names.
const (
	EntityRestaurant      = "restaurants"
	EntityPizza           = "pizzas"
	EntityRestaurantPizza = "restaurant_pizzas"
)

// Price bounds for a restaurant_pizza, inclusive.
const (
	MinPrice = 1
	MaxPrice = 30
)

type Restaurant struct {
	ID      int64  `yaml:"id,omitempty"`
	Name    string `yaml:"name"`
	Address string `yaml:"address"`
}

// Record projects the writable columns for validation.
func (r Restaurant) Record() validation.Record {
	return validation.Record{"name": r.Name, "address": r.Address}
}

type Pizza struct {
	ID          int64  `yaml:"id,omitempty"`
	Name        string `yaml:"name"`
	Ingredients string `yaml:"ingredients"`
}

// Record projects the writable columns for validation.
func (p Pizza) Record() validation.Record {
	return validation.Record{"name": p.Name, "ingredients": p.Ingredients}
}

// RestaurantPizza links one restaurant to one pizza at a price.
type RestaurantPizza struct {
	ID           int64
	Price        int
	RestaurantID int64
	PizzaID      int64
}

// Record projects the writable columns for validation. Zero ids are reported
// as missing.
func (rp RestaurantPizza) Record() validation.Record {
	rec := validation.Record{"price": rp.Price}
	if rp.RestaurantID != 0 {
		rec["restaurant_id"] = rp.RestaurantID
	}
	if rp.PizzaID != 0 {
		rec["pizza_id"] = rp.PizzaID
	}
	return rec
}

// LinkFilter narrows ListRestaurantPizzas. Zero fields match everything.
type LinkFilter struct {
	RestaurantID int64
	PizzaID      int64
}

// Matches reports whether link passes the filter.
func (f LinkFilter) Matches(link RestaurantPizza) bool {
	if f.RestaurantID != 0 && link.RestaurantID != f.RestaurantID {
		return false
	}
	if f.PizzaID != 0 && link.PizzaID != f.PizzaID {
		return false
	}
	return true
}

// Reader is the read side of a store transaction. Lists are ordered by id;
// Get* return errors.ErrNotFound for missing ids.
type Reader interface {
	ListRestaurants(ctx context.Context) ([]Restaurant, error)
	ListPizzas(ctx context.Context) ([]Pizza, error)
	ListRestaurantPizzas(ctx context.Context, filter LinkFilter) ([]RestaurantPizza, error)
	GetRestaurant(ctx context.Context, id int64) (Restaurant, error)
	GetPizza(ctx context.Context, id int64) (Pizza, error)
	GetRestaurantPizza(ctx context.Context, id int64) (RestaurantPizza, error)
}

// Writer adds the mutations request handlers need.
type Writer interface {
	Reader
	DeleteRestaurant(ctx context.Context, id int64) error
	CreateRestaurantPizza(ctx context.Context, link *RestaurantPizza) error
}

// Rules returns the validation registry applied before every insert.
func Rules() *validation.Registry {
	reg := validation.NewRegistry()
	reg.Entity(EntityRestaurant).OnWrite(
		validation.String("name").Required().Rule(),
		validation.String("address").Required().Rule(),
	)
	reg.Entity(EntityPizza).OnWrite(
		validation.String("name").Required().Rule(),
		validation.String("ingredients").Required().Rule(),
	)
	reg.Entity(EntityRestaurantPizza).OnWrite(
		validation.Int("price").Required().Between(MinPrice, MaxPrice).Rule(),
		validation.Int("restaurant_id").Required().Min(1).Rule(),
		validation.Int("pizza_id").Required().Min(1).Rule(),
	)
	return reg
}

// ValidPrice reports whether price lies within [MinPrice, MaxPrice].
func ValidPrice(price int) bool {
	return price >= MinPrice && price <= MaxPrice
}
