package model

import (
	"context"

	"github.com/deicod/pizzeria/errors"
)

// RestaurantForms renders every restaurant in id order.
func RestaurantForms(ctx context.Context, r Reader) ([]RestaurantForm, error) {
	restaurants, err := r.ListRestaurants(ctx)
	if err != nil {
		return nil, err
	}
	pizzas, err := r.ListPizzas(ctx)
	if err != nil {
		return nil, err
	}
	links, err := r.ListRestaurantPizzas(ctx, LinkFilter{})
	if err != nil {
		return nil, err
	}
	catalog := NewCatalog(restaurants, pizzas, links)
	forms := make([]RestaurantForm, 0, len(restaurants))
	for _, rest := range restaurants {
		forms = append(forms, catalog.RestaurantForm(rest))
	}
	return forms, nil
}

// RestaurantFormByID renders one restaurant, loading only its links and their
// pizzas.
func RestaurantFormByID(ctx context.Context, r Reader, id int64) (RestaurantForm, error) {
	rest, err := r.GetRestaurant(ctx, id)
	if err != nil {
		return RestaurantForm{}, err
	}
	links, err := r.ListRestaurantPizzas(ctx, LinkFilter{RestaurantID: id})
	if err != nil {
		return RestaurantForm{}, err
	}
	pizzas, err := pizzasFor(ctx, r, links)
	if err != nil {
		return RestaurantForm{}, err
	}
	return NewCatalog([]Restaurant{rest}, pizzas, links).RestaurantForm(rest), nil
}

// PizzaForms renders every pizza in id order.
func PizzaForms(ctx context.Context, r Reader) ([]PizzaForm, error) {
	pizzas, err := r.ListPizzas(ctx)
	if err != nil {
		return nil, err
	}
	forms := make([]PizzaForm, 0, len(pizzas))
	for _, p := range pizzas {
		forms = append(forms, NewPizzaForm(p))
	}
	return forms, nil
}

// CreateLink inserts a restaurant_pizza and renders it with both sides.
func CreateLink(ctx context.Context, w Writer, price int, pizzaID, restaurantID int64) (LinkForm, error) {
	link := RestaurantPizza{Price: price, PizzaID: pizzaID, RestaurantID: restaurantID}
	if err := w.CreateRestaurantPizza(ctx, &link); err != nil {
		return LinkForm{}, err
	}
	pizza, err := w.GetPizza(ctx, link.PizzaID)
	if err != nil {
		return LinkForm{}, errors.Wrapf(err, "load pizza %d", link.PizzaID)
	}
	rest, err := w.GetRestaurant(ctx, link.RestaurantID)
	if err != nil {
		return LinkForm{}, errors.Wrapf(err, "load restaurant %d", link.RestaurantID)
	}
	return NewLinkForm(link, &pizza, &rest, true), nil
}

// DeleteRestaurant removes a restaurant and its links.
func DeleteRestaurant(ctx context.Context, w Writer, id int64) error {
	return w.DeleteRestaurant(ctx, id)
}

func pizzasFor(ctx context.Context, r Reader, links []RestaurantPizza) ([]Pizza, error) {
	seen := make(map[int64]struct{}, len(links))
	var out []Pizza
	for _, link := range links {
		if _, ok := seen[link.PizzaID]; ok {
			continue
		}
		seen[link.PizzaID] = struct{}{}
		p, err := r.GetPizza(ctx, link.PizzaID)
		if err != nil {
			return nil, errors.Wrapf(err, "load pizza %d", link.PizzaID)
		}
		out = append(out, p)
	}
	return out, nil
}
