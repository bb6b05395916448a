package model

import (
	"context"
	"sort"
)

// Catalog is a loaded set of records with link indexes in both directions.
// Records never point at each other; relations are resolved through the
// indexes.
type Catalog struct {
	restaurants  map[int64]Restaurant
	pizzas       map[int64]Pizza
	links        []RestaurantPizza
	byRestaurant map[int64][]int
	byPizza      map[int64][]int
}

// NewCatalog indexes the given records. Links are kept in id order.
func NewCatalog(restaurants []Restaurant, pizzas []Pizza, links []RestaurantPizza) *Catalog {
	c := &Catalog{
		restaurants:  make(map[int64]Restaurant, len(restaurants)),
		pizzas:       make(map[int64]Pizza, len(pizzas)),
		links:        append([]RestaurantPizza(nil), links...),
		byRestaurant: make(map[int64][]int),
		byPizza:      make(map[int64][]int),
	}
	for _, r := range restaurants {
		c.restaurants[r.ID] = r
	}
	for _, p := range pizzas {
		c.pizzas[p.ID] = p
	}
	sort.SliceStable(c.links, func(i, j int) bool { return c.links[i].ID < c.links[j].ID })
	for i, link := range c.links {
		c.byRestaurant[link.RestaurantID] = append(c.byRestaurant[link.RestaurantID], i)
		c.byPizza[link.PizzaID] = append(c.byPizza[link.PizzaID], i)
	}
	return c
}

// LoadCatalog reads every record through r.
func LoadCatalog(ctx context.Context, r Reader) (*Catalog, error) {
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
	return NewCatalog(restaurants, pizzas, links), nil
}

func (c *Catalog) RestaurantCount() int { return len(c.restaurants) }
func (c *Catalog) PizzaCount() int      { return len(c.pizzas) }
func (c *Catalog) LinkCount() int       { return len(c.links) }

func (c *Catalog) Restaurant(id int64) (Restaurant, bool) {
	r, ok := c.restaurants[id]
	return r, ok
}

func (c *Catalog) Pizza(id int64) (Pizza, bool) {
	p, ok := c.pizzas[id]
	return p, ok
}

func (c *Catalog) LinksOfRestaurant(restaurantID int64) []RestaurantPizza {
	return c.collect(c.byRestaurant[restaurantID])
}

func (c *Catalog) LinksOfPizza(pizzaID int64) []RestaurantPizza {
	return c.collect(c.byPizza[pizzaID])
}

// PizzasOf lists the distinct pizzas a restaurant serves, in link order.
func (c *Catalog) PizzasOf(restaurantID int64) []Pizza {
	seen := make(map[int64]struct{})
	var out []Pizza
	for _, idx := range c.byRestaurant[restaurantID] {
		id := c.links[idx].PizzaID
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if p, ok := c.pizzas[id]; ok {
			out = append(out, p)
		}
	}
	return out
}

// RestaurantsOf lists the distinct restaurants serving a pizza, in link order.
func (c *Catalog) RestaurantsOf(pizzaID int64) []Restaurant {
	seen := make(map[int64]struct{})
	var out []Restaurant
	for _, idx := range c.byPizza[pizzaID] {
		id := c.links[idx].RestaurantID
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if r, ok := c.restaurants[id]; ok {
			out = append(out, r)
		}
	}
	return out
}

// RestaurantForm renders r with its links, each without the restaurant side.
func (c *Catalog) RestaurantForm(r Restaurant) RestaurantForm {
	form := RestaurantForm{
		RestaurantFields: NewRestaurantFields(r),
		RestaurantPizzas: []LinkForm{},
	}
	for _, link := range c.LinksOfRestaurant(r.ID) {
		form.RestaurantPizzas = append(form.RestaurantPizzas, c.LinkForm(link, false))
	}
	return form
}

// LinkForm renders link with whatever sides the catalog holds.
func (c *Catalog) LinkForm(link RestaurantPizza, includeRestaurant bool) LinkForm {
	var pizza *Pizza
	if p, ok := c.pizzas[link.PizzaID]; ok {
		pizza = &p
	}
	var restaurant *Restaurant
	if r, ok := c.restaurants[link.RestaurantID]; ok {
		restaurant = &r
	}
	return NewLinkForm(link, pizza, restaurant, includeRestaurant)
}

func (c *Catalog) collect(idxs []int) []RestaurantPizza {
	if len(idxs) == 0 {
		return nil
	}
	out := make([]RestaurantPizza, len(idxs))
	for i, idx := range idxs {
		out[i] = c.links[idx]
	}
	return out
}
