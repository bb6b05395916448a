package runtime

import (
	"strconv"
	"strings"

	"github.com/deicod/pizzeria/errors"
)

// Dialect selects the bind-parameter syntax of the target database.
type Dialect int

const (
	// DialectPostgres renders $1, $2, ... placeholders.
	DialectPostgres Dialect = iota
	// DialectSQLite renders ? placeholders.
	DialectSQLite
)

// Placeholder returns the bind parameter for the 1-indexed position n.
func (d Dialect) Placeholder(n int) string {
	if d == DialectSQLite {
		return "?"
	}
	return "$" + strconv.Itoa(n)
}

func (d Dialect) String() string {
	if d == DialectSQLite {
		return "sqlite"
	}
	return "postgres"
}

type Operator string

const OpEqual Operator = "="

type SortDirection string

const SortAsc SortDirection = "ASC"

type Predicate struct {
	Column   string
	Operator Operator
	Value    any
}

// Eq is shorthand for an equality predicate.
func Eq(column string, value any) Predicate {
	return Predicate{Column: column, Operator: OpEqual, Value: value}
}

type Order struct {
	Column    string
	Direction SortDirection
}

type SelectSpec struct {
	Dialect    Dialect
	Table      string
	Columns    []string
	Predicates []Predicate
	Orders     []Order
}

func BuildSelectSQL(spec SelectSpec) (string, []any) {
	columns := spec.Columns
	if len(columns) == 0 {
		columns = []string{"*"}
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(strings.Join(columns, ", "))
	sb.WriteString(" FROM ")
	sb.WriteString(spec.Table)

	args := make([]any, 0, len(spec.Predicates))
	writeWhere(&sb, spec.Dialect, spec.Predicates, &args)

	if len(spec.Orders) > 0 {
		sb.WriteString(" ORDER BY ")
		for i, order := range spec.Orders {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(order.Column)
			sb.WriteByte(' ')
			sb.WriteString(string(order.Direction))
		}
	}

	return sb.String(), args
}

// InsertSpec describes a single-row INSERT.
type InsertSpec struct {
	Dialect   Dialect
	Table     string
	Columns   []string
	Values    []any
	Returning []string
}

func BuildInsertSQL(spec InsertSpec) (string, []any, error) {
	if spec.Table == "" {
		return "", nil, errors.New("table is required")
	}
	if len(spec.Columns) == 0 {
		return "", nil, errors.New("columns are required")
	}
	if len(spec.Values) != len(spec.Columns) {
		return "", nil, errors.Newf("insert into %s has %d values, expected %d", spec.Table, len(spec.Values), len(spec.Columns))
	}
	placeholders := make([]string, len(spec.Columns))
	for i := range spec.Columns {
		placeholders[i] = spec.Dialect.Placeholder(i + 1)
	}
	sql := "INSERT INTO " + spec.Table + " (" + strings.Join(spec.Columns, ", ") + ") VALUES (" + strings.Join(placeholders, ", ") + ")"
	if len(spec.Returning) > 0 {
		sql += " RETURNING " + strings.Join(spec.Returning, ", ")
	}
	return sql, append([]any(nil), spec.Values...), nil
}

// DeleteSpec describes a DELETE constrained by predicates.
type DeleteSpec struct {
	Dialect    Dialect
	Table      string
	Predicates []Predicate
}

func BuildDeleteSQL(spec DeleteSpec) (string, []any, error) {
	if spec.Table == "" {
		return "", nil, errors.New("table is required")
	}
	if len(spec.Predicates) == 0 {
		return "", nil, errors.Newf("delete from %s requires at least one predicate", spec.Table)
	}
	var sb strings.Builder
	sb.WriteString("DELETE FROM ")
	sb.WriteString(spec.Table)
	args := make([]any, 0, len(spec.Predicates))
	writeWhere(&sb, spec.Dialect, spec.Predicates, &args)
	return sb.String(), args, nil
}

func writeWhere(sb *strings.Builder, dialect Dialect, preds []Predicate, args *[]any) {
	if len(preds) == 0 {
		return
	}
	sb.WriteString(" WHERE ")
	for i, pred := range preds {
		if i > 0 {
			sb.WriteString(" AND ")
		}
		sb.WriteString(pred.Column)
		sb.WriteByte(' ')
		sb.WriteString(string(pred.Operator))
		sb.WriteByte(' ')
		*args = append(*args, pred.Value)
		sb.WriteString(dialect.Placeholder(len(*args)))
	}
}
