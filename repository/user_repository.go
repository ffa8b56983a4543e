package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"secretsManagement/models"
)

const userColumns = `id, username, password_hash, role, is_active, created_at`

// AddUser inserts a user and returns its generated ID.
// PasswordHash must already be hashed. Role defaults to models.RoleUser.
// On success u.ID and u.CreatedAt are set and a "created user" audit entry is
// written with the new user as actor.
func (s *Store) AddUser(ctx context.Context, u *models.User) (id int64, err error) {
	defer s.observe("add_user", time.Now(), &err)
	return s.insertUser(ctx, u, false)
}

// AddFirstUser behaves like AddUser but only succeeds while the users table is
// empty; otherwise it fails with ErrUsersExist. The emptiness check and the
// insert share one write transaction.
func (s *Store) AddFirstUser(ctx context.Context, u *models.User) (id int64, err error) {
	defer s.observe("add_first_user", time.Now(), &err)
	return s.insertUser(ctx, u, true)
}

func (s *Store) insertUser(ctx context.Context, u *models.User, firstOnly bool) (id int64, err error) {
	if u == nil {
		return 0, fmt.Errorf("%w: user is nil", ErrValidation)
	}
	if strings.TrimSpace(u.Username) == "" {
		return 0, fmt.Errorf("%w: username is required", ErrValidation)
	}
	if u.Role == "" {
		u.Role = models.RoleUser
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	createdAt := s.now()
	err = s.write(ctx, func(tx *sqlx.Tx) error {
		if firstOnly {
			if err := ensureNoUsers(ctx, tx); err != nil {
				return err
			}
		}
		if err := ensureUsernameAvailable(ctx, tx, u.Username); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `INSERT INTO users (username, password_hash, role, is_active, created_at) VALUES (?,?,?,?,?)`,
			u.Username, u.PasswordHash, u.Role, u.IsActive, createdAt)
		if err != nil {
			return err
		}
		if id, err = res.LastInsertId(); err != nil {
			return err
		}
		s.auditInTx(ctx, tx, models.AuditLog{
			UserID:     id,
			Action:     models.ActionCreatedUser,
			ObjectType: models.ObjectTypeUser,
			ObjectID:   id,
			CreatedAt:  createdAt,
		})
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("add user %q: %w", u.Username, err)
	}
	u.ID = id
	u.CreatedAt = createdAt
	s.logger.Info("user created", zap.Int64("user_id", id), zap.String("username", u.Username), zap.String("role", u.Role))
	return id, nil
}

// GetUserByID returns ErrNotFound if no user has the given ID.
func (s *Store) GetUserByID(ctx context.Context, id int64) (u *models.User, err error) {
	defer s.observe("get_user_by_id", time.Now(), &err)
	return s.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

// GetUserByUsername returns ErrNotFound if no user has the given username.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (u *models.User, err error) {
	defer s.observe("get_user_by_username", time.Now(), &err)
	return s.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username)
}

func (s *Store) getUser(ctx context.Context, query string, key any) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, rowTimeout)
	defer cancel()

	var u models.User
	if err := s.db.GetContext(ctx, &u, query, key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: user %v", ErrNotFound, key)
		}
		return nil, classify(err)
	}
	return &u, nil
}

// GetAllUsers lists users ordered by username.
func (s *Store) GetAllUsers(ctx context.Context) (users []models.User, err error) {
	defer s.observe("get_all_users", time.Now(), &err)
	ctx, cancel := context.WithTimeout(ctx, listTimeout)
	defer cancel()

	users = []models.User{}
	if err := s.db.SelectContext(ctx, &users, `SELECT `+userColumns+` FROM users ORDER BY username ASC`); err != nil {
		return nil, classify(err)
	}
	return users, nil
}

// UserExists reports whether a user with the given username exists.
func (s *Store) UserExists(ctx context.Context, username string) (exists bool, err error) {
	defer s.observe("user_exists", time.Now(), &err)
	ctx, cancel := context.WithTimeout(ctx, rowTimeout)
	defer cancel()

	if err := s.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM users WHERE username = ?)`, username); err != nil {
		return false, classify(err)
	}
	return exists, nil
}

// ClearAllUsers deletes every user together with their secrets, so no secret is
// left without an owner. Audit entries are kept. Intended for test fixtures.
func (s *Store) ClearAllUsers(ctx context.Context) (err error) {
	defer s.observe("clear_all_users", time.Now(), &err)
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	err = s.write(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM secrets`); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM users`)
		return err
	})
	if err != nil {
		return fmt.Errorf("clear users: %w", err)
	}
	s.logger.Warn("all users cleared")
	return nil
}
