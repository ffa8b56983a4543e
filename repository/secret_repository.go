package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"secretsManagement/models"
)

const secretColumns = `id, owner_id, secret_value, secret_type, created_at, expires_at`

// AddSecret inserts a secret for an existing owner and returns its generated ID.
// CreatedAt defaults to the current time when zero. ExpiresAt is stored as given.
// The "created secret" audit entry is attributed to the context actor, or to the
// owner when none is set.
func (s *Store) AddSecret(ctx context.Context, sec *models.Secret) (id int64, err error) {
	defer s.observe("add_secret", time.Now(), &err)
	if sec == nil {
		return 0, fmt.Errorf("%w: secret is nil", ErrValidation)
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	createdAt := sec.CreatedAt.UTC()
	if sec.CreatedAt.IsZero() {
		createdAt = s.now()
	}
	expiresAt := utcPtr(sec.ExpiresAt)
	actor := ActorFrom(ctx)
	if actor == models.SystemActor {
		actor = sec.OwnerID
	}

	err = s.write(ctx, func(tx *sqlx.Tx) error {
		if err := ensureOwnerExists(ctx, tx, sec.OwnerID); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `INSERT INTO secrets (owner_id, secret_value, secret_type, created_at, expires_at) VALUES (?,?,?,?,?)`,
			sec.OwnerID, sec.SecretValue, sec.SecretType, createdAt, expiresAt)
		if err != nil {
			return err
		}
		if id, err = res.LastInsertId(); err != nil {
			return err
		}
		s.auditInTx(ctx, tx, models.AuditLog{
			UserID:     actor,
			Action:     models.ActionCreatedSecret,
			ObjectType: models.ObjectTypeSecret,
			ObjectID:   id,
			CreatedAt:  createdAt,
		})
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("add secret for owner %d: %w", sec.OwnerID, err)
	}
	sec.ID = id
	sec.CreatedAt = createdAt
	sec.ExpiresAt = expiresAt
	s.logger.Info("secret created", zap.Int64("secret_id", id), zap.Int64("owner_id", sec.OwnerID), zap.String("secret_type", sec.SecretType))
	return id, nil
}

// GetSecretByID returns ErrNotFound if no secret has the given ID.
func (s *Store) GetSecretByID(ctx context.Context, id int64) (sec *models.Secret, err error) {
	defer s.observe("get_secret_by_id", time.Now(), &err)
	ctx, cancel := context.WithTimeout(ctx, rowTimeout)
	defer cancel()

	var out models.Secret
	if err := s.db.GetContext(ctx, &out, `SELECT `+secretColumns+` FROM secrets WHERE id = ?`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: secret %d", ErrNotFound, id)
		}
		return nil, classify(err)
	}
	return &out, nil
}

// GetAllSecrets lists every secret, most recent first.
func (s *Store) GetAllSecrets(ctx context.Context) (secrets []models.Secret, err error) {
	defer s.observe("get_all_secrets", time.Now(), &err)
	return s.selectSecrets(ctx, `SELECT `+secretColumns+` FROM secrets ORDER BY created_at DESC, id DESC`)
}

// GetSecretsByUser lists the secrets of one owner, most recent first.
// An owner without secrets yields an empty slice.
func (s *Store) GetSecretsByUser(ctx context.Context, ownerID int64) (secrets []models.Secret, err error) {
	defer s.observe("get_secrets_by_user", time.Now(), &err)
	return s.selectSecrets(ctx, `SELECT `+secretColumns+` FROM secrets WHERE owner_id = ? ORDER BY created_at DESC, id DESC`, ownerID)
}

func (s *Store) selectSecrets(ctx context.Context, query string, args ...any) ([]models.Secret, error) {
	ctx, cancel := context.WithTimeout(ctx, listTimeout)
	defer cancel()

	out := []models.Secret{}
	if err := s.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, classify(err)
	}
	return out, nil
}

// UpdateSecret replaces value, type and expiry of an existing secret.
// owner_id and created_at are never touched. Returns ErrNotFound when id does not exist.
func (s *Store) UpdateSecret(ctx context.Context, id int64, patch models.SecretPatch) (updated bool, err error) {
	defer s.observe("update_secret", time.Now(), &err)
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	err = s.write(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE secrets SET secret_value = ?, secret_type = ?, expires_at = ? WHERE id = ?`,
			patch.SecretValue, patch.SecretType, utcPtr(patch.ExpiresAt), id)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%w: secret %d", ErrNotFound, id)
		}
		updated = true
		s.auditInTx(ctx, tx, models.AuditLog{
			UserID:     ActorFrom(ctx),
			Action:     models.ActionUpdatedSecret,
			ObjectType: models.ObjectTypeSecret,
			ObjectID:   id,
			CreatedAt:  s.now(),
		})
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("update secret %d: %w", id, err)
	}
	s.logger.Info("secret updated", zap.Int64("secret_id", id), zap.Int64("actor", ActorFrom(ctx)))
	return updated, nil
}

// DeleteSecret removes a secret. It reports false without error when nothing matched,
// so repeated deletes are safe.
func (s *Store) DeleteSecret(ctx context.Context, id int64) (deleted bool, err error) {
	defer s.observe("delete_secret", time.Now(), &err)
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	err = s.write(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM secrets WHERE id = ?`, id)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		deleted = true
		s.auditInTx(ctx, tx, models.AuditLog{
			UserID:     ActorFrom(ctx),
			Action:     models.ActionDeletedSecret,
			ObjectType: models.ObjectTypeSecret,
			ObjectID:   id,
			CreatedAt:  s.now(),
		})
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("delete secret %d: %w", id, err)
	}
	if deleted {
		s.logger.Info("secret deleted", zap.Int64("secret_id", id), zap.Int64("actor", ActorFrom(ctx)))
	}
	return deleted, nil
}

// DeleteSecretsByUser removes every secret of one owner and returns how many
// were removed. Each removal gets its own audit entry.
func (s *Store) DeleteSecretsByUser(ctx context.Context, ownerID int64) (removed int64, err error) {
	defer s.observe("delete_secrets_by_user", time.Now(), &err)
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	err = s.write(ctx, func(tx *sqlx.Tx) error {
		var ids []int64
		if err := tx.SelectContext(ctx, &ids, `SELECT id FROM secrets WHERE owner_id = ? ORDER BY id`, ownerID); err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM secrets WHERE owner_id = ?`, ownerID)
		if err != nil {
			return err
		}
		if removed, err = res.RowsAffected(); err != nil {
			return err
		}
		now := s.now()
		for _, id := range ids {
			s.auditInTx(ctx, tx, models.AuditLog{
				UserID:     ActorFrom(ctx),
				Action:     models.ActionDeletedSecret,
				ObjectType: models.ObjectTypeSecret,
				ObjectID:   id,
				CreatedAt:  now,
			})
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("delete secrets of owner %d: %w", ownerID, err)
	}
	if removed > 0 {
		s.logger.Info("secrets deleted", zap.Int64("owner_id", ownerID), zap.Int64("count", removed))
	}
	return removed, nil
}

// SecretExists reports whether a secret with the given ID exists.
func (s *Store) SecretExists(ctx context.Context, id int64) (exists bool, err error) {
	defer s.observe("secret_exists", time.Now(), &err)
	ctx, cancel := context.WithTimeout(ctx, rowTimeout)
	defer cancel()

	if err := s.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM secrets WHERE id = ?)`, id); err != nil {
		return false, classify(err)
	}
	return exists, nil
}

// ClearAllSecrets deletes every secret without auditing. Intended for test fixtures.
func (s *Store) ClearAllSecrets(ctx context.Context) (err error) {
	defer s.observe("clear_all_secrets", time.Now(), &err)
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	err = s.write(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `DELETE FROM secrets`)
		return err
	})
	if err != nil {
		return fmt.Errorf("clear secrets: %w", err)
	}
	s.logger.Warn("all secrets cleared")
	return nil
}

const secretWithOwnerQuery = `
SELECT s.id, s.owner_id, s.secret_value, s.secret_type, s.created_at, s.expires_at,
       u.username AS owner_username, u.role AS owner_role
FROM secrets s
JOIN users u ON u.id = s.owner_id`

// GetSecretWithOwner returns a secret joined with its owner's username and role.
func (s *Store) GetSecretWithOwner(ctx context.Context, id int64) (sec *models.SecretWithOwner, err error) {
	defer s.observe("get_secret_with_owner", time.Now(), &err)
	ctx, cancel := context.WithTimeout(ctx, rowTimeout)
	defer cancel()

	var out models.SecretWithOwner
	if err := s.db.GetContext(ctx, &out, secretWithOwnerQuery+` WHERE s.id = ?`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: secret %d", ErrNotFound, id)
		}
		return nil, classify(err)
	}
	return &out, nil
}

// GetSecretsWithOwner lists every secret joined with its owner, most recent first.
func (s *Store) GetSecretsWithOwner(ctx context.Context) (secrets []models.SecretWithOwner, err error) {
	defer s.observe("get_secrets_with_owner", time.Now(), &err)
	ctx, cancel := context.WithTimeout(ctx, listTimeout)
	defer cancel()

	secrets = []models.SecretWithOwner{}
	if err := s.db.SelectContext(ctx, &secrets, secretWithOwnerQuery+` ORDER BY s.created_at DESC, s.id DESC`); err != nil {
		return nil, classify(err)
	}
	return secrets, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
