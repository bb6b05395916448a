package sqlitestore

import (
	"github.com/mattn/go-sqlite3"

	"github.com/deicod/pizzeria/errors"
)

// classify maps SQLite constraint failures onto the store error sentinels.
func classify(err error, op string) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
		switch sqliteErr.ExtendedCode {
		case sqlite3.ErrConstraintForeignKey:
			return errors.Mark(errors.Wrap(err, op), errors.ErrIntegrity)
		case sqlite3.ErrConstraintCheck, sqlite3.ErrConstraintNotNull:
			return errors.Mark(errors.Wrap(err, op), errors.ErrValidation)
		}
	}
	return errors.Storage(err, op)
}
