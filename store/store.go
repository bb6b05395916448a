// Package store defines the transactional record store behind the HTTP
// handlers. Backends live in pgstore and sqlitestore.
package store

import (
	"context"
	"net/url"

	"github.com/deicod/pizzeria/errors"
	"github.com/deicod/pizzeria/model"
	"github.com/deicod/pizzeria/orm/runtime"
	"github.com/deicod/pizzeria/orm/runtime/validation"
)

// Tx is an open transaction. Deletes cascade to dependent restaurant_pizzas
// and return errors.ErrNotFound for missing ids.
type Tx interface {
	model.Reader
	DeleteRestaurant(ctx context.Context, id int64) error
	DeletePizza(ctx context.Context, id int64) error
	CreateRestaurant(ctx context.Context, r *model.Restaurant) error
	CreatePizza(ctx context.Context, p *model.Pizza) error
	CreateRestaurantPizza(ctx context.Context, link *model.RestaurantPizza) error
}

var _ model.Writer = Tx(nil)

// Store opens transactions. InTx commits when fn returns nil and rolls back
// on error or panic.
type Store interface {
	InTx(ctx context.Context, fn func(Tx) error) error
	Close() error
}

// Options are shared by every backend.
type Options struct {
	Observer runtime.QueryObserver
	Rules    *validation.Registry
}

type Option func(*Options)

// WithObserver reports every statement to observer.
func WithObserver(observer runtime.QueryObserver) Option {
	return func(o *Options) {
		o.Observer = observer
	}
}

// WithRules replaces the validation registry. A nil registry disables
// validation before inserts.
func WithRules(rules *validation.Registry) Option {
	return func(o *Options) {
		o.Rules = rules
	}
}

// ResolveOptions applies opts over the defaults.
func ResolveOptions(opts ...Option) Options {
	o := Options{Rules: model.Rules()}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// Validate runs the create rules for entity and marks failures as
// errors.ErrValidation.
func (o Options) Validate(ctx context.Context, entity string, record validation.Record, input any) error {
	if err := o.Rules.Validate(ctx, entity, validation.OpCreate, record, input); err != nil {
		return errors.Mark(errors.Wrapf(err, "validate %s", entity), errors.ErrValidation)
	}
	return nil
}

// Reset deletes every restaurant and pizza, cascading to their links.
func Reset(ctx context.Context, tx Tx) error {
	restaurants, err := tx.ListRestaurants(ctx)
	if err != nil {
		return err
	}
	for _, r := range restaurants {
		if err := tx.DeleteRestaurant(ctx, r.ID); err != nil {
			return err
		}
	}
	pizzas, err := tx.ListPizzas(ctx)
	if err != nil {
		return err
	}
	for _, p := range pizzas {
		if err := tx.DeletePizza(ctx, p.ID); err != nil {
			return err
		}
	}
	return nil
}

// RedactURL masks the password of a database URL for logs and errors.
// Values without credentials are returned unchanged.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	return u.Redacted()
}
