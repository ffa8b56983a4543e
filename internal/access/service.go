// Package access resolves credentials to roles and scopes store queries by role.
// Admins see every row; any other role sees only rows it owns or authored.
package access

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"secretsManagement/internal/auth"
	"secretsManagement/internal/metrics"
	"secretsManagement/internal/ratelimit"
	"secretsManagement/models"
	"secretsManagement/repository"
)

// Auth attempt outcomes reported to metrics.
const (
	authOK        = "ok"
	authDenied    = "denied"
	authThrottled = "throttled"
	authError     = "error"
)

// Store is the subset of the entity store the access layer depends on.
type Store interface {
	repository.UserRepositoryI
	repository.SecretRepositoryI
	repository.AuditLogRepositoryI
}

// Service is safe for concurrent use.
type Service struct {
	store      Store
	limiter    ratelimit.FailureLimiter
	logger     *zap.Logger
	metrics    *metrics.Metrics
	bcryptCost int
	expiryDays int
	now        func() time.Time

	// dummyHash is compared against for unknown usernames so that they cost
	// as much as a wrong password.
	dummyHash string
}

// Option configures a Service.
type Option func(*Service)

// WithLimiter enables login throttling.
func WithLimiter(l ratelimit.FailureLimiter) Option {
	return func(s *Service) {
		if l != nil {
			s.limiter = l
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics enables auth attempt metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithBcryptCost sets the work factor for new password hashes.
func WithBcryptCost(cost int) Option {
	return func(s *Service) { s.bcryptCost = cost }
}

// WithDefaultExpiryDays sets the expiry applied to secrets created without one.
func WithDefaultExpiryDays(days int) Option {
	return func(s *Service) {
		if days > 0 {
			s.expiryDays = days
		}
	}
}

// WithClock overrides the time source used for expiry defaults.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService builds the access layer over store.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:      store,
		limiter:    ratelimit.Nop{},
		logger:     zap.NewNop(),
		bcryptCost: auth.DefaultCost,
		expiryDays: models.DefaultExpiryDays,
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	if h, err := auth.HashPassword("placeholder-credential", s.bcryptCost); err == nil {
		s.dummyHash = h
	}
	return s
}

// Register hashes password and creates the user. Role defaults to models.RoleUser.
func (s *Service) Register(ctx context.Context, username, password, role string) (*models.User, error) {
	u, err := s.newUser(username, password, role)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.AddUser(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Service) newUser(username, password, role string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, fmt.Errorf("%w: username is required", repository.ErrValidation)
	}
	hash, err := auth.HashPassword(password, s.bcryptCost)
	if errors.Is(err, auth.ErrEmptyPassword) {
		return nil, fmt.Errorf("%w: password is required", repository.ErrValidation)
	}
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	if strings.TrimSpace(role) == "" {
		role = models.RoleUser
	}
	return &models.User{Username: username, PasswordHash: hash, Role: role, IsActive: true}, nil
}

// Enroll registers a user on behalf of a transport caller. Standard roles are
// open to anyone. The admin role requires admin caller credentials, except for
// the first account in an empty store.
func (s *Service) Enroll(ctx context.Context, callerName, callerPassword, username, password, role string) (*models.User, error) {
	if !models.IsAdminRole(role) {
		return s.Register(ctx, username, password, role)
	}

	u, err := s.newUser(username, password, role)
	if err != nil {
		return nil, err
	}
	_, err = s.store.AddFirstUser(ctx, u)
	if err == nil {
		s.logger.Info("bootstrap admin created", zap.String("username", u.Username))
		return u, nil
	}
	if !errors.Is(err, repository.ErrUsersExist) {
		return nil, err
	}

	ctx, caller, err := s.caller(ctx, callerName, callerPassword)
	if err != nil {
		return nil, err
	}
	if !caller.IsAdmin() {
		return nil, fmt.Errorf("%w: only admins may create admin accounts", ErrForbidden)
	}
	if _, err := s.store.AddUser(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// AuthenticateAndGetRole returns the caller's role, or "" when the user is
// unknown, the password is wrong, the account is inactive, the username is
// throttled, or the store fails. The reasons are deliberately indistinguishable.
func (s *Service) AuthenticateAndGetRole(ctx context.Context, username, password string) string {
	u, err := s.authenticate(ctx, username, password)
	if err != nil {
		return ""
	}
	return u.Role
}

// authenticate resolves credentials to a user or fails with ErrUnauthorized.
func (s *Service) authenticate(ctx context.Context, username, password string) (*models.User, error) {
	blocked, err := s.limiter.Blocked(ctx, username)
	if err != nil {
		s.logger.Warn("login limiter unavailable", zap.String("username", username), zap.Error(err))
	}
	if blocked {
		s.metrics.AuthAttempt(authThrottled)
		s.logger.Info("login throttled", zap.String("username", username))
		return nil, ErrUnauthorized
	}

	u, err := s.store.GetUserByUsername(ctx, username)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		auth.CheckPassword(s.dummyHash, password)
		s.denied(ctx, username, "unknown user")
		return nil, ErrUnauthorized
	case err != nil:
		s.metrics.AuthAttempt(authError)
		s.logger.Error("login lookup failed", zap.String("username", username), zap.Error(err))
		return nil, ErrUnauthorized
	}
	if !auth.CheckPassword(u.PasswordHash, password) {
		s.denied(ctx, username, "bad credential")
		return nil, ErrUnauthorized
	}
	if !u.IsActive {
		s.denied(ctx, username, "inactive account")
		return nil, ErrUnauthorized
	}

	if err := s.limiter.Reset(ctx, username); err != nil {
		s.logger.Warn("login limiter reset failed", zap.String("username", username), zap.Error(err))
	}
	s.metrics.AuthAttempt(authOK)
	return u, nil
}

func (s *Service) denied(ctx context.Context, username, reason string) {
	s.metrics.AuthAttempt(authDenied)
	s.logger.Debug("login denied", zap.String("username", username), zap.String("reason", reason))
	if err := s.limiter.RecordFailure(ctx, username); err != nil {
		s.logger.Warn("login limiter record failed", zap.String("username", username), zap.Error(err))
	}
}

// caller authenticates and returns a context carrying the caller as audit actor.
func (s *Service) caller(ctx context.Context, username, password string) (context.Context, *models.User, error) {
	u, err := s.authenticate(ctx, username, password)
	if err != nil {
		return ctx, nil, err
	}
	return repository.WithActor(ctx, u.ID), u, nil
}

// SecretsByRole lists every secret for admins and the caller's own secrets otherwise.
func (s *Service) SecretsByRole(ctx context.Context, username, password string) ([]models.Secret, error) {
	ctx, u, err := s.caller(ctx, username, password)
	if err != nil {
		return nil, err
	}
	if u.IsAdmin() {
		return s.store.GetAllSecrets(ctx)
	}
	return s.store.GetSecretsByUser(ctx, u.ID)
}

// UsersByRole lists every user for admins and only the caller otherwise.
func (s *Service) UsersByRole(ctx context.Context, username, password string) ([]models.User, error) {
	ctx, u, err := s.caller(ctx, username, password)
	if err != nil {
		return nil, err
	}
	if u.IsAdmin() {
		return s.store.GetAllUsers(ctx)
	}
	return []models.User{*u}, nil
}

// AuditLogsByRole lists the whole trail for admins and the caller's own entries otherwise.
func (s *Service) AuditLogsByRole(ctx context.Context, username, password string) ([]models.AuditLog, error) {
	ctx, u, err := s.caller(ctx, username, password)
	if err != nil {
		return nil, err
	}
	if u.IsAdmin() {
		return s.store.GetAuditLogs(ctx)
	}
	return s.store.GetAuditLogsByUser(ctx, u.ID)
}

// SearchSecretsByRole searches every secret for admins and the caller's own otherwise.
func (s *Service) SearchSecretsByRole(ctx context.Context, username, password, pattern string) ([]models.Secret, error) {
	ctx, u, err := s.caller(ctx, username, password)
	if err != nil {
		return nil, err
	}
	if u.IsAdmin() {
		return s.store.SearchSecrets(ctx, pattern)
	}
	return s.store.SearchSecretsByUser(ctx, u.ID, pattern)
}

// Statistics is restricted to admins.
func (s *Service) Statistics(ctx context.Context, username, password string) (*models.Statistics, error) {
	ctx, u, err := s.caller(ctx, username, password)
	if err != nil {
		return nil, err
	}
	if !u.IsAdmin() {
		return nil, fmt.Errorf("%w: statistics require admin", ErrForbidden)
	}
	return s.store.GetStatistics(ctx)
}
