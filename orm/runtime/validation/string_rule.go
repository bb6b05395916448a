package validation

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"
)

// String builds a string-specific validation rule for the provided column.
func String(field string) *StringRuleBuilder {
	return &StringRuleBuilder{field: field}
}

// StringRuleBuilder provides fluent helpers for describing text column constraints.
type StringRuleBuilder struct {
	field    string
	required bool
	maxLen   int
	hasMax   bool
}

// Required enforces that the column must be present and not blank.
func (b *StringRuleBuilder) Required() *StringRuleBuilder {
	b.required = true
	return b
}

// MaxLen enforces a maximum rune length when the column is provided.
func (b *StringRuleBuilder) MaxLen(n int) *StringRuleBuilder {
	if n < 0 {
		n = 0
	}
	b.hasMax = true
	b.maxLen = n
	return b
}

// Rule materializes the builder into a concrete validation Rule.
func (b *StringRuleBuilder) Rule() Rule {
	field := b.field
	required := b.required
	hasMax, maxLen := b.hasMax, b.maxLen
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
		value, ok := subject.Record.String(field)
		if !ok {
			if _, isPtr := raw.(*string); isPtr {
				if required {
					return FieldError{Field: field, Message: "is required"}
				}
				return nil
			}
			return FieldError{Field: field, Message: "must be a string"}
		}
		if strings.TrimSpace(value) == "" {
			if required {
				return FieldError{Field: field, Message: "cannot be blank"}
			}
			return nil
		}
		if hasMax && utf8.RuneCountInString(value) > maxLen {
			return FieldError{Field: field, Message: fmt.Sprintf("must be at most %d characters", maxLen)}
		}
		return nil
	})
}
