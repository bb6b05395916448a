// Package errors provides error handling for pizzeria.
//
// It re-exports github.com/cockroachdb/errors and defines the sentinel errors the
// record store and HTTP layer use to classify failures:
//
//	// Mark a driver error so callers can classify it without losing detail
//	return errors.Mark(errors.Wrap(err, "insert restaurant_pizza"), errors.ErrIntegrity)
//
//	// Classify at the boundary
//	if errors.Is(err, errors.ErrNotFound) {
//	    // 404
//	}
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
	WithHint     = crdb.WithHint
	WithDetailf  = crdb.WithDetailf
)

// Error inspection
var (
	Is        = crdb.Is
	IsAny     = crdb.IsAny
	As        = crdb.As
	Mark      = crdb.Mark
	Unwrap    = crdb.Unwrap
	UnwrapAll = crdb.UnwrapAll
)

// Hints
var (
	GetAllHints  = crdb.GetAllHints
	FlattenHints = crdb.FlattenHints
)

// Sentinel errors shared by the store and the HTTP layer.
var (
	// ErrNotFound indicates the referenced record does not exist.
	ErrNotFound = New("not found")

	// ErrValidation indicates a write was rejected before or by a field constraint.
	ErrValidation = New("validation failed")

	// ErrIntegrity indicates a foreign key did not resolve to an existing record.
	ErrIntegrity = New("integrity violation")

	// ErrStorage indicates the underlying store failed.
	ErrStorage = New("storage failure")
)

// IsNotFound reports whether err is or wraps ErrNotFound.
func IsNotFound(err error) bool {
	return err != nil && Is(err, ErrNotFound)
}

// IsValidation reports whether err was rejected by validation or integrity rules.
// Both classes surface identically to API callers.
func IsValidation(err error) bool {
	return err != nil && IsAny(err, ErrValidation, ErrIntegrity)
}

// NotFoundf wraps ErrNotFound with a formatted message.
func NotFoundf(format string, args ...interface{}) error {
	return Wrapf(ErrNotFound, format, args...)
}

// Storage marks err as a storage failure while keeping its message.
func Storage(err error, context string) error {
	if err == nil {
		return nil
	}
	return Mark(Wrap(err, context), ErrStorage)
}
