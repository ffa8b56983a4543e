package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"secretsManagement/internal/db"
	"secretsManagement/internal/metrics"
	"secretsManagement/models"
)

const (
	rowTimeout   = 3 * time.Second // single-row reads and writes
	listTimeout  = 5 * time.Second // list, search and aggregate queries
	writeTimeout = 5 * time.Second // transactional writes, including the wait for the writer lock
)

// Store is the durable home of users, secrets and audit logs.
// One Store is created per process and shared; it is safe for concurrent use.
// Writes are serialized by an internal lock, reads are not.
type Store struct {
	db      *sqlx.DB
	writer  *semaphore.Weighted
	logger  *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for write events and audit failures.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics enables operation metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// WithClock overrides the time source used for created_at.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore wraps an opened database (see db.Open). The caller keeps ownership
// of d and closes it after the Store is no longer used.
func NewStore(d *sql.DB, opts ...Option) *Store {
	s := &Store{
		db:     sqlx.NewDb(d, db.DriverName),
		writer: semaphore.NewWeighted(1),
		logger: zap.NewNop(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type actorKey struct{}

// WithActor records the acting user for audit entries written during ctx.
// Without it, update and delete entries are attributed to models.SystemActor.
func WithActor(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, actorKey{}, userID)
}

// ActorFrom returns the acting user stored by WithActor, or models.SystemActor.
func ActorFrom(ctx context.Context) int64 {
	if id, ok := ctx.Value(actorKey{}).(int64); ok {
		return id
	}
	return models.SystemActor
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, rowTimeout)
	defer cancel()
	return classify(s.db.PingContext(ctx))
}

// SQLiteVersion reports the version of the linked SQLite library.
func (s *Store) SQLiteVersion(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, rowTimeout)
	defer cancel()
	var v string
	if err := s.db.QueryRowContext(ctx, `SELECT sqlite_version()`).Scan(&v); err != nil {
		return "", classify(err)
	}
	return v, nil
}

// write runs fn in a transaction while holding the writer lock.
// fn must use tx for every statement. Waiting for the lock is bounded by ctx.
func (s *Store) write(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	if err := s.writer.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("%w: waiting for writer lock: %w", ErrStoreUnavailable, err)
	}
	defer s.writer.Release(1)

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return classify(err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return classify(err)
	}
	return classify(tx.Commit())
}

// auditInTx appends an audit entry inside the caller's transaction behind a
// savepoint. A failed insert is rolled back to the savepoint and logged; the
// surrounding write still commits.
func (s *Store) auditInTx(ctx context.Context, tx *sqlx.Tx, entry models.AuditLog) {
	if _, err := tx.ExecContext(ctx, `SAVEPOINT audit_entry`); err != nil {
		s.auditFailed(entry, err)
		return
	}
	if err := insertAuditLog(ctx, tx, entry); err != nil {
		_, _ = tx.ExecContext(ctx, `ROLLBACK TO SAVEPOINT audit_entry`)
		_, _ = tx.ExecContext(ctx, `RELEASE SAVEPOINT audit_entry`)
		s.auditFailed(entry, err)
		return
	}
	if _, err := tx.ExecContext(ctx, `RELEASE SAVEPOINT audit_entry`); err != nil {
		s.auditFailed(entry, err)
	}
}

func (s *Store) auditFailed(entry models.AuditLog, err error) {
	s.metrics.AuditWriteFailed()
	s.logger.Warn("audit log write failed",
		zap.Int64("user_id", entry.UserID),
		zap.String("action", entry.Action),
		zap.String("object_type", entry.ObjectType),
		zap.Int64("object_id", entry.ObjectID),
		zap.Error(err))
}

// observe is deferred by public methods with a named error result.
func (s *Store) observe(operation string, start time.Time, err *error) {
	s.metrics.ObserveStore(operation, start, *err)
}
