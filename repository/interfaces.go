package repository

import (
	"context"

	"secretsManagement/models"
)

// UserRepositoryI defines operations on User entities.
type UserRepositoryI interface {
	AddUser(ctx context.Context, u *models.User) (int64, error)
	AddFirstUser(ctx context.Context, u *models.User) (int64, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetAllUsers(ctx context.Context) ([]models.User, error)
	UserExists(ctx context.Context, username string) (bool, error)
	ClearAllUsers(ctx context.Context) error
}

// SecretRepositoryI defines operations on Secret entities.
type SecretRepositoryI interface {
	AddSecret(ctx context.Context, s *models.Secret) (int64, error)
	GetSecretByID(ctx context.Context, id int64) (*models.Secret, error)
	GetAllSecrets(ctx context.Context) ([]models.Secret, error)
	GetSecretsByUser(ctx context.Context, ownerID int64) ([]models.Secret, error)
	UpdateSecret(ctx context.Context, id int64, patch models.SecretPatch) (bool, error)
	DeleteSecret(ctx context.Context, id int64) (bool, error)
	DeleteSecretsByUser(ctx context.Context, ownerID int64) (int64, error)
	SecretExists(ctx context.Context, id int64) (bool, error)
	SearchSecrets(ctx context.Context, pattern string) ([]models.Secret, error)
	SearchSecretsByUser(ctx context.Context, ownerID int64, pattern string) ([]models.Secret, error)
	GetSecretWithOwner(ctx context.Context, id int64) (*models.SecretWithOwner, error)
	GetSecretsWithOwner(ctx context.Context) ([]models.SecretWithOwner, error)
	ClearAllSecrets(ctx context.Context) error
}

// AuditLogRepositoryI defines operations on the audit trail.
type AuditLogRepositoryI interface {
	AddAuditLog(ctx context.Context, userID int64, action, objectType string, objectID int64) error
	GetAuditLogs(ctx context.Context) ([]models.AuditLog, error)
	GetAuditLogsByUser(ctx context.Context, userID int64) ([]models.AuditLog, error)
	GetStatistics(ctx context.Context) (*models.Statistics, error)
}

var (
	_ UserRepositoryI     = (*Store)(nil)
	_ SecretRepositoryI   = (*Store)(nil)
	_ AuditLogRepositoryI = (*Store)(nil)
)
