package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"secretsManagement/models"
)

const auditColumns = `id, COALESCE(user_id, 0) AS user_id, action, object_type, object_id, created_at`

// insertAuditLog stores SystemActor as NULL.
func insertAuditLog(ctx context.Context, tx *sqlx.Tx, entry models.AuditLog) error {
	var actor sql.NullInt64
	if entry.UserID != models.SystemActor {
		actor = sql.NullInt64{Int64: entry.UserID, Valid: true}
	}
	_, err := tx.ExecContext(ctx, `INSERT INTO audit_logs (user_id, action, object_type, object_id, created_at) VALUES (?,?,?,?,?)`,
		actor, entry.Action, entry.ObjectType, entry.ObjectID, entry.CreatedAt)
	return err
}

// AddAuditLog appends an entry outside of any other write. userID may be
// models.SystemActor. It only fails when the store is unavailable.
func (s *Store) AddAuditLog(ctx context.Context, userID int64, action, objectType string, objectID int64) (err error) {
	defer s.observe("add_audit_log", time.Now(), &err)
	ctx, cancel := context.WithTimeout(ctx, rowTimeout)
	defer cancel()

	entry := models.AuditLog{
		UserID:     userID,
		Action:     action,
		ObjectType: objectType,
		ObjectID:   objectID,
		CreatedAt:  s.now(),
	}
	err = s.write(ctx, func(tx *sqlx.Tx) error {
		return insertAuditLog(ctx, tx, entry)
	})
	if err != nil {
		return fmt.Errorf("add audit log %q: %w", action, err)
	}
	return nil
}

// GetAuditLogs lists all entries in creation order.
func (s *Store) GetAuditLogs(ctx context.Context) (logs []models.AuditLog, err error) {
	defer s.observe("get_audit_logs", time.Now(), &err)
	return s.selectAuditLogs(ctx, `SELECT `+auditColumns+` FROM audit_logs ORDER BY created_at ASC, id ASC`)
}

// GetAuditLogsByUser lists the entries a user authored, in creation order.
func (s *Store) GetAuditLogsByUser(ctx context.Context, userID int64) (logs []models.AuditLog, err error) {
	defer s.observe("get_audit_logs_by_user", time.Now(), &err)
	return s.selectAuditLogs(ctx, `SELECT `+auditColumns+` FROM audit_logs WHERE user_id = ? ORDER BY created_at ASC, id ASC`, userID)
}

func (s *Store) selectAuditLogs(ctx context.Context, query string, args ...any) ([]models.AuditLog, error) {
	ctx, cancel := context.WithTimeout(ctx, listTimeout)
	defer cancel()

	out := []models.AuditLog{}
	if err := s.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, classify(err)
	}
	return out, nil
}

// GetStatistics aggregates the audit trail. System actions count towards
// TotalActions but not UniqueUsers, and are skipped when resolving the first and
// last active user. An empty trail yields zero counts and empty usernames.
func (s *Store) GetStatistics(ctx context.Context) (stats *models.Statistics, err error) {
	defer s.observe("get_statistics", time.Now(), &err)
	ctx, cancel := context.WithTimeout(ctx, listTimeout)
	defer cancel()

	var out models.Statistics
	if err := s.db.GetContext(ctx, &out, `SELECT COUNT(*) AS total_actions, COUNT(DISTINCT user_id) AS unique_users FROM audit_logs`); err != nil {
		return nil, classify(err)
	}
	if out.FirstActiveUser, err = s.activeUser(ctx, "ASC"); err != nil {
		return nil, err
	}
	if out.LastActiveUser, err = s.activeUser(ctx, "DESC"); err != nil {
		return nil, err
	}
	return &out, nil
}

// activeUser returns the username behind the first entry in the given direction
// whose actor still exists.
func (s *Store) activeUser(ctx context.Context, dir string) (string, error) {
	q := `SELECT u.username FROM audit_logs a JOIN users u ON u.id = a.user_id ORDER BY a.created_at ` + dir + `, a.id ` + dir + ` LIMIT 1`
	var name string
	if err := s.db.GetContext(ctx, &name, q); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", classify(err)
	}
	return name, nil
}
