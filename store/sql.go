package store

import (
	"github.com/deicod/pizzeria/model"
	"github.com/deicod/pizzeria/orm/runtime"
)

// Column lists in scan order.
var (
	RestaurantColumns      = []string{"id", "name", "address"}
	PizzaColumns           = []string{"id", "name", "ingredients"}
	RestaurantPizzaColumns = []string{"id", "price", "restaurant_id", "pizza_id"}
)

var byID = []runtime.Order{{Column: "id", Direction: runtime.SortAsc}}

// ListSQL selects columns from table in id order.
func ListSQL(d runtime.Dialect, table string, columns []string, preds ...runtime.Predicate) (string, []any) {
	return runtime.BuildSelectSQL(runtime.SelectSpec{
		Dialect:    d,
		Table:      table,
		Columns:    columns,
		Predicates: preds,
		Orders:     byID,
	})
}

// GetSQL selects the row with the given id.
func GetSQL(d runtime.Dialect, table string, columns []string, id int64) (string, []any) {
	return runtime.BuildSelectSQL(runtime.SelectSpec{
		Dialect:    d,
		Table:      table,
		Columns:    columns,
		Predicates: []runtime.Predicate{runtime.Eq("id", id)},
	})
}

// DeleteSQL deletes rows of table where column equals value.
func DeleteSQL(d runtime.Dialect, table, column string, value any) (string, []any) {
	sql, args, _ := runtime.BuildDeleteSQL(runtime.DeleteSpec{
		Dialect:    d,
		Table:      table,
		Predicates: []runtime.Predicate{runtime.Eq(column, value)},
	})
	return sql, args
}

// InsertSQL inserts one row and returns its generated id.
func InsertSQL(d runtime.Dialect, table string, columns []string, values ...any) (string, []any, error) {
	return runtime.BuildInsertSQL(runtime.InsertSpec{
		Dialect:   d,
		Table:     table,
		Columns:   columns,
		Values:    values,
		Returning: []string{"id"},
	})
}

// LinkPredicates turns a filter into WHERE predicates.
func LinkPredicates(f model.LinkFilter) []runtime.Predicate {
	var preds []runtime.Predicate
	if f.RestaurantID != 0 {
		preds = append(preds, runtime.Eq("restaurant_id", f.RestaurantID))
	}
	if f.PizzaID != 0 {
		preds = append(preds, runtime.Eq("pizza_id", f.PizzaID))
	}
	return preds
}
