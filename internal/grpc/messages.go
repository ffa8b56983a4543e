package grpcserver

import (
	"time"

	"secretsManagement/internal/access"
	"secretsManagement/models"
)

type RegisterUserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
}

type UserResponse struct {
	User *models.User `json:"user"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Role string `json:"role"`
}

type ListUsersRequest struct{}

type ListUsersResponse struct {
	Users []models.User `json:"users"`
}

type CreateSecretRequest = access.NewSecret

type SecretResponse struct {
	Secret *models.Secret `json:"secret"`
}

type ListSecretsRequest struct{}

type ListSecretsResponse struct {
	Secrets []models.Secret `json:"secrets"`
}

type GetSecretRequest struct {
	ID int64 `json:"id"`
}

type UpdateSecretRequest struct {
	ID          int64      `json:"id"`
	SecretValue string     `json:"secret_value"`
	SecretType  string     `json:"secret_type"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

type DeleteSecretRequest struct {
	ID int64 `json:"id"`
}

type DeleteSecretResponse struct {
	Deleted bool `json:"deleted"`
}

type SearchSecretsRequest struct {
	Query string `json:"query"`
}

type ListAuditLogsRequest struct{}

type ListAuditLogsResponse struct {
	AuditLogs []models.AuditLog `json:"audit_logs"`
}

type GetStatisticsRequest struct{}

type StatisticsResponse struct {
	Statistics *models.Statistics `json:"statistics"`
}
