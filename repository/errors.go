package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
)

// Store errors. Callers match them with errors.Is; the wrapped message carries
// the entity and key involved.
var (
	// ErrNotFound is returned when the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a username is already taken.
	ErrConflict = errors.New("conflict")

	// ErrUsersExist is returned by AddFirstUser once any user has been created.
	ErrUsersExist = errors.New("users already exist")

	// ErrInvalidReference is returned when a secret names an owner that does not exist.
	ErrInvalidReference = errors.New("invalid reference")

	// ErrValidation is returned for ambiguous or malformed input, e.g. an empty search pattern.
	ErrValidation = errors.New("validation failed")

	// ErrStoreUnavailable is returned when the underlying database cannot serve the call.
	ErrStoreUnavailable = errors.New("store unavailable")
)

var sentinels = []error{ErrNotFound, ErrConflict, ErrUsersExist, ErrInvalidReference, ErrValidation, ErrStoreUnavailable}

// classify maps driver and database/sql errors onto the store's sentinels.
// Errors that already carry a sentinel are returned unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return err
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	if errors.Is(err, sql.ErrConnDone) || errors.Is(err, driver.ErrBadConn) || err.Error() == "sql: database is closed" {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code {
		case sqlite3.ErrConstraint:
			switch sqliteErr.ExtendedCode {
			case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
				return fmt.Errorf("%w: %w", ErrConflict, err)
			case sqlite3.ErrConstraintForeignKey:
				return fmt.Errorf("%w: %w", ErrInvalidReference, err)
			}
		case sqlite3.ErrCantOpen, sqlite3.ErrIoErr, sqlite3.ErrBusy, sqlite3.ErrLocked,
			sqlite3.ErrNotADB, sqlite3.ErrCorrupt, sqlite3.ErrFull, sqlite3.ErrReadonly:
			return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
		}
	}
	return err
}

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict reports whether err is a duplicate-username error.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}
