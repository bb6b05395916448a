package model

// PizzaForm is a pizza's scalar fields. Pizza listings never embed links.
type PizzaForm struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Ingredients string `json:"ingredients"`
}

// RestaurantFields is a restaurant without its link collection.
type RestaurantFields struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address"`
}

// RestaurantForm is a restaurant with its links embedded. Embedded links
// carry their pizza but never the restaurant itself.
type RestaurantForm struct {
	RestaurantFields
	RestaurantPizzas []LinkForm `json:"restaurant_pizzas"`
}

// LinkForm is a restaurant_pizza with its nested sides.
type LinkForm struct {
	ID           int64             `json:"id"`
	Price        int               `json:"price"`
	PizzaID      int64             `json:"pizza_id"`
	RestaurantID int64             `json:"restaurant_id"`
	Pizza        *PizzaForm        `json:"pizza"`
	Restaurant   *RestaurantFields `json:"restaurant,omitempty"`
}

func NewPizzaForm(p Pizza) PizzaForm {
	return PizzaForm{ID: p.ID, Name: p.Name, Ingredients: p.Ingredients}
}

func NewRestaurantFields(r Restaurant) RestaurantFields {
	return RestaurantFields{ID: r.ID, Name: r.Name, Address: r.Address}
}

// NewLinkForm renders link. The restaurant side is attached only when
// includeRestaurant is set; a nil pizza or restaurant leaves that side empty.
func NewLinkForm(link RestaurantPizza, pizza *Pizza, restaurant *Restaurant, includeRestaurant bool) LinkForm {
	form := LinkForm{
		ID:           link.ID,
		Price:        link.Price,
		PizzaID:      link.PizzaID,
		RestaurantID: link.RestaurantID,
	}
	if pizza != nil {
		pf := NewPizzaForm(*pizza)
		form.Pizza = &pf
	}
	if includeRestaurant && restaurant != nil {
		rf := NewRestaurantFields(*restaurant)
		form.Restaurant = &rf
	}
	return form
}
