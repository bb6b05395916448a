package validation

import (
	"context"
	"fmt"
)

// Int builds an integer validation rule for the provided column.
func Int(field string) *IntRuleBuilder {
	return &IntRuleBuilder{field: field}
}

// IntRuleBuilder provides fluent helpers for describing integer column constraints.
type IntRuleBuilder struct {
	field    string
	required bool
	min      int64
	hasMin   bool
	max      int64
	hasMax   bool
}

// Required enforces that the column must be present and non-nil.
func (b *IntRuleBuilder) Required() *IntRuleBuilder {
	b.required = true
	return b
}

// Min enforces an inclusive lower bound.
func (b *IntRuleBuilder) Min(n int64) *IntRuleBuilder {
	b.hasMin = true
	b.min = n
	return b
}

// Max enforces an inclusive upper bound.
func (b *IntRuleBuilder) Max(n int64) *IntRuleBuilder {
	b.hasMax = true
	b.max = n
	return b
}

// Between enforces the inclusive range [lo, hi].
func (b *IntRuleBuilder) Between(lo, hi int64) *IntRuleBuilder {
	return b.Min(lo).Max(hi)
}

// Rule materializes the builder into a concrete validation Rule.
func (b *IntRuleBuilder) Rule() Rule {
	field := b.field
	required := b.required
	hasMin, lo := b.hasMin, b.min
	hasMax, hi := b.hasMax, b.max
	return RuleFunc(func(_ context.Context, subject Subject) error {
		if field == "" {
			return nil
		}
		raw, ok := subject.Record.Get(field)
		if !ok || raw == nil {
			if required {
				return FieldError{Field: field, Message: "is required"}
			}
			return nil
		}
		value, ok := asInt64(raw)
		if !ok {
			switch raw.(type) {
			case *int, *int64:
				if required {
					return FieldError{Field: field, Message: "is required"}
				}
				return nil
			}
			return FieldError{Field: field, Message: "must be an integer"}
		}
		switch {
		case hasMin && hasMax && (value < lo || value > hi):
			return FieldError{Field: field, Message: fmt.Sprintf("must be between %d and %d", lo, hi)}
		case hasMin && value < lo:
			return FieldError{Field: field, Message: fmt.Sprintf("must be at least %d", lo)}
		case hasMax && value > hi:
			return FieldError{Field: field, Message: fmt.Sprintf("must be at most %d", hi)}
		}
		return nil
	})
}
