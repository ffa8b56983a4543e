package grpcserver

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"secretsManagement/internal/access"
	"secretsManagement/internal/auth"
	"secretsManagement/models"
	"secretsManagement/repository"
)

// Server implements secrets.v1.SecretService over the access layer.
type Server struct {
	Access *access.Service
	Logger *zap.Logger
}

var _ SecretServiceServer = (*Server)(nil)

// toStatus maps access and store errors to gRPC status codes.
func (s *Server) toStatus(err error) error {
	var code codes.Code
	switch {
	case errors.Is(err, access.ErrUnauthorized):
		code = codes.Unauthenticated
	case errors.Is(err, access.ErrForbidden):
		code = codes.PermissionDenied
	case errors.Is(err, repository.ErrNotFound):
		code = codes.NotFound
	case errors.Is(err, repository.ErrConflict):
		code = codes.AlreadyExists
	case errors.Is(err, repository.ErrInvalidReference):
		code = codes.FailedPrecondition
	case errors.Is(err, repository.ErrValidation):
		code = codes.InvalidArgument
	case errors.Is(err, repository.ErrStoreUnavailable):
		code = codes.Unavailable
	default:
		if s.Logger != nil {
			s.Logger.Error("grpc call failed", zap.Error(err))
		}
		return status.Error(codes.Internal, "internal error")
	}
	return status.Error(code, err.Error())
}

// RegisterUser creates an account. Credentials in metadata are optional and
// only needed to create admin accounts.
func (s *Server) RegisterUser(ctx context.Context, req *RegisterUserRequest) (*UserResponse, error) {
	if req == nil || req.Username == "" {
		return nil, status.Error(codes.InvalidArgument, "username is required")
	}
	c, _ := auth.ParseFromMD(ctx)
	u, err := s.Access.Enroll(ctx, c.Username, c.Password, req.Username, req.Password, req.Role)
	if err != nil {
		return nil, s.toStatus(err)
	}
	return &UserResponse{User: u}, nil
}

// Login resolves the role of the given credentials. No token is issued.
func (s *Server) Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "credentials are required")
	}
	role := s.Access.AuthenticateAndGetRole(ctx, req.Username, req.Password)
	if role == "" {
		return nil, status.Error(codes.Unauthenticated, "invalid credentials")
	}
	return &LoginResponse{Role: role}, nil
}

func (s *Server) ListUsers(ctx context.Context, _ *ListUsersRequest) (*ListUsersResponse, error) {
	c, err := auth.RequireCredentials(ctx)
	if err != nil {
		return nil, err
	}
	users, err := s.Access.UsersByRole(ctx, c.Username, c.Password)
	if err != nil {
		return nil, s.toStatus(err)
	}
	return &ListUsersResponse{Users: users}, nil
}

func (s *Server) CreateSecret(ctx context.Context, req *CreateSecretRequest) (*SecretResponse, error) {
	c, err := auth.RequireCredentials(ctx)
	if err != nil {
		return nil, err
	}
	sec, err := s.Access.CreateSecret(ctx, c.Username, c.Password, *req)
	if err != nil {
		return nil, s.toStatus(err)
	}
	return &SecretResponse{Secret: sec}, nil
}

func (s *Server) ListSecrets(ctx context.Context, _ *ListSecretsRequest) (*ListSecretsResponse, error) {
	c, err := auth.RequireCredentials(ctx)
	if err != nil {
		return nil, err
	}
	secrets, err := s.Access.SecretsByRole(ctx, c.Username, c.Password)
	if err != nil {
		return nil, s.toStatus(err)
	}
	return &ListSecretsResponse{Secrets: secrets}, nil
}

func (s *Server) GetSecret(ctx context.Context, req *GetSecretRequest) (*SecretResponse, error) {
	if req == nil || req.ID <= 0 {
		return nil, status.Error(codes.InvalidArgument, "id is required")
	}
	c, err := auth.RequireCredentials(ctx)
	if err != nil {
		return nil, err
	}
	sec, err := s.Access.SecretByID(ctx, c.Username, c.Password, req.ID)
	if err != nil {
		return nil, s.toStatus(err)
	}
	return &SecretResponse{Secret: sec}, nil
}

func (s *Server) UpdateSecret(ctx context.Context, req *UpdateSecretRequest) (*SecretResponse, error) {
	if req == nil || req.ID <= 0 {
		return nil, status.Error(codes.InvalidArgument, "id is required")
	}
	c, err := auth.RequireCredentials(ctx)
	if err != nil {
		return nil, err
	}
	patch := models.SecretPatch{SecretValue: req.SecretValue, SecretType: req.SecretType, ExpiresAt: req.ExpiresAt}
	sec, err := s.Access.UpdateSecret(ctx, c.Username, c.Password, req.ID, patch)
	if err != nil {
		return nil, s.toStatus(err)
	}
	return &SecretResponse{Secret: sec}, nil
}

func (s *Server) DeleteSecret(ctx context.Context, req *DeleteSecretRequest) (*DeleteSecretResponse, error) {
	if req == nil || req.ID <= 0 {
		return nil, status.Error(codes.InvalidArgument, "id is required")
	}
	c, err := auth.RequireCredentials(ctx)
	if err != nil {
		return nil, err
	}
	deleted, err := s.Access.DeleteSecret(ctx, c.Username, c.Password, req.ID)
	if err != nil {
		return nil, s.toStatus(err)
	}
	return &DeleteSecretResponse{Deleted: deleted}, nil
}

func (s *Server) SearchSecrets(ctx context.Context, req *SearchSecretsRequest) (*ListSecretsResponse, error) {
	c, err := auth.RequireCredentials(ctx)
	if err != nil {
		return nil, err
	}
	secrets, err := s.Access.SearchSecretsByRole(ctx, c.Username, c.Password, req.Query)
	if err != nil {
		return nil, s.toStatus(err)
	}
	return &ListSecretsResponse{Secrets: secrets}, nil
}

func (s *Server) ListAuditLogs(ctx context.Context, _ *ListAuditLogsRequest) (*ListAuditLogsResponse, error) {
	c, err := auth.RequireCredentials(ctx)
	if err != nil {
		return nil, err
	}
	logs, err := s.Access.AuditLogsByRole(ctx, c.Username, c.Password)
	if err != nil {
		return nil, s.toStatus(err)
	}
	return &ListAuditLogsResponse{AuditLogs: logs}, nil
}

func (s *Server) GetStatistics(ctx context.Context, _ *GetStatisticsRequest) (*StatisticsResponse, error) {
	c, err := auth.RequireCredentials(ctx)
	if err != nil {
		return nil, err
	}
	stats, err := s.Access.Statistics(ctx, c.Username, c.Password)
	if err != nil {
		return nil, s.toStatus(err)
	}
	return &StatisticsResponse{Statistics: stats}, nil
}
