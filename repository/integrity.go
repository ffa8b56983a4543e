package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Integrity checks run inside the write transaction, under the writer lock,
// before any insert. Storage constraints stay in place as a backstop, but the
// failure kind callers see comes from here.

func ensureUsernameAvailable(ctx context.Context, tx *sqlx.Tx, username string) error {
	var taken bool
	if err := tx.GetContext(ctx, &taken, `SELECT EXISTS(SELECT 1 FROM users WHERE username = ?)`, username); err != nil {
		return err
	}
	if taken {
		return fmt.Errorf("%w: username %q already exists", ErrConflict, username)
	}
	return nil
}

func ensureOwnerExists(ctx context.Context, tx *sqlx.Tx, ownerID int64) error {
	var exists bool
	if err := tx.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM users WHERE id = ?)`, ownerID); err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: owner %d does not exist", ErrInvalidReference, ownerID)
	}
	return nil
}

func ensureNoUsers(ctx context.Context, tx *sqlx.Tx) error {
	var exists bool
	if err := tx.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM users)`); err != nil {
		return err
	}
	if exists {
		return ErrUsersExist
	}
	return nil
}
