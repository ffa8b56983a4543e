package models

import "time"

// Object types recorded in the audit trail.
const (
	ObjectTypeUser   = "user"
	ObjectTypeSecret = "secret"
)

// Audit actions written by the store.
const (
	ActionCreatedUser   = "created user"
	ActionCreatedSecret = "created secret"
	ActionUpdatedSecret = "updated secret"
	ActionDeletedSecret = "deleted secret"
)

// SystemActor is the user id recorded for actions without an authenticated actor.
const SystemActor int64 = 0

// AuditLog is an append-only record of a mutating action.
// UserID is SystemActor for system-initiated actions.
type AuditLog struct {
	ID         int64     `db:"id" json:"id"`
	UserID     int64     `db:"user_id" json:"user_id"`
	Action     string    `db:"action" json:"action"`
	ObjectType string    `db:"object_type" json:"object_type"`
	ObjectID   int64     `db:"object_id" json:"object_id"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// Statistics aggregates the audit trail.
// FirstActiveUser and LastActiveUser are empty when no entry has a known actor.
type Statistics struct {
	TotalActions    int64  `db:"total_actions" json:"total_actions"`
	UniqueUsers     int64  `db:"unique_users" json:"unique_users"`
	FirstActiveUser string `json:"first_active_user"`
	LastActiveUser  string `json:"last_active_user"`
}
