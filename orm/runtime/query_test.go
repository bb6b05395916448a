package runtime

import (
	"testing"
)

func TestBuildSelectSQL(t *testing.T) {
	spec := SelectSpec{
		Table:      "restaurant_pizzas",
		Columns:    []string{"id", "price"},
		Predicates: []Predicate{Eq("restaurant_id", int64(4))},
		Orders:     []Order{{Column: "id", Direction: SortAsc}},
	}

	sql, args := BuildSelectSQL(spec)
	expected := "SELECT id, price FROM restaurant_pizzas WHERE restaurant_id = $1 ORDER BY id ASC"
	if sql != expected {
		t.Fatalf("unexpected SQL:\n got: %s\nwant: %s", sql, expected)
	}
	if len(args) != 1 || args[0] != int64(4) {
		t.Fatalf("unexpected args: %#v", args)
	}
}

func TestBuildSelectSQLSQLite(t *testing.T) {
	spec := SelectSpec{
		Dialect:    DialectSQLite,
		Table:      "restaurant_pizzas",
		Columns:    []string{"id"},
		Predicates: []Predicate{Eq("restaurant_id", 1), Eq("pizza_id", 2)},
	}
	sql, args := BuildSelectSQL(spec)
	if sql != "SELECT id FROM restaurant_pizzas WHERE restaurant_id = ? AND pizza_id = ?" {
		t.Fatalf("unexpected SQL: %s", sql)
	}
	if len(args) != 2 {
		t.Fatalf("expected 2 args, got %d", len(args))
	}
}

func TestBuildSelectSQLNumbersPlaceholders(t *testing.T) {
	sql, args := BuildSelectSQL(SelectSpec{
		Table:      "restaurant_pizzas",
		Columns:    []string{"id"},
		Predicates: []Predicate{Eq("restaurant_id", 1), Eq("pizza_id", 2)},
	})
	if sql != "SELECT id FROM restaurant_pizzas WHERE restaurant_id = $1 AND pizza_id = $2" {
		t.Fatalf("unexpected SQL: %s", sql)
	}
	if len(args) != 2 {
		t.Fatalf("expected 2 args, got %d", len(args))
	}
}

func TestBuildSelectSQLDefaults(t *testing.T) {
	sql, args := BuildSelectSQL(SelectSpec{Table: "pizzas"})
	if sql != "SELECT * FROM pizzas" {
		t.Fatalf("unexpected SQL: %s", sql)
	}
	if len(args) != 0 {
		t.Fatalf("expected no args, got %d", len(args))
	}
}

func TestBuildInsertSQL(t *testing.T) {
	sql, args, err := BuildInsertSQL(InsertSpec{
		Table:     "restaurant_pizzas",
		Columns:   []string{"price", "restaurant_id", "pizza_id"},
		Values:    []any{15, int64(1), int64(2)},
		Returning: []string{"id"},
	})
	if err != nil {
		t.Fatalf("BuildInsertSQL: %v", err)
	}
	expected := "INSERT INTO restaurant_pizzas (price, restaurant_id, pizza_id) VALUES ($1, $2, $3) RETURNING id"
	if sql != expected {
		t.Fatalf("unexpected SQL:\n got: %s\nwant: %s", sql, expected)
	}
	if len(args) != 3 {
		t.Fatalf("expected 3 args, got %d", len(args))
	}

	if _, _, err := BuildInsertSQL(InsertSpec{Table: "pizzas", Columns: []string{"name"}}); err == nil {
		t.Fatalf("expected arity error")
	}
	if _, _, err := BuildInsertSQL(InsertSpec{Columns: []string{"name"}, Values: []any{"x"}}); err == nil {
		t.Fatalf("expected missing table error")
	}
}

func TestBuildDeleteSQL(t *testing.T) {
	sql, args, err := BuildDeleteSQL(DeleteSpec{
		Dialect:    DialectSQLite,
		Table:      "restaurants",
		Predicates: []Predicate{Eq("id", int64(9))},
	})
	if err != nil {
		t.Fatalf("BuildDeleteSQL: %v", err)
	}
	if sql != "DELETE FROM restaurants WHERE id = ?" {
		t.Fatalf("unexpected SQL: %s", sql)
	}
	if len(args) != 1 || args[0] != int64(9) {
		t.Fatalf("unexpected args: %#v", args)
	}

	if _, _, err := BuildDeleteSQL(DeleteSpec{Table: "restaurants"}); err == nil {
		t.Fatalf("expected unbounded delete to be rejected")
	}
}
