package access

import (
	"context"
	"errors"
	"fmt"
	"time"

	"secretsManagement/models"
	"secretsManagement/repository"
)

// NewSecret is the input of CreateSecret.
type NewSecret struct {
	// OwnerID defaults to the caller. Only admins may name another owner.
	OwnerID     int64      `json:"owner_id,omitempty"`
	SecretValue string     `json:"secret_value"`
	SecretType  string     `json:"secret_type"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	// ExpiryDays applies when ExpiresAt is nil; 0 selects the service default.
	ExpiryDays int `json:"expiry_days,omitempty"`
}

// CreateSecret stores a secret on behalf of the caller.
func (s *Service) CreateSecret(ctx context.Context, username, password string, in NewSecret) (*models.Secret, error) {
	ctx, u, err := s.caller(ctx, username, password)
	if err != nil {
		return nil, err
	}
	owner := in.OwnerID
	if owner == 0 {
		owner = u.ID
	}
	if owner != u.ID && !u.IsAdmin() {
		return nil, fmt.Errorf("%w: cannot create secrets for user %d", ErrForbidden, owner)
	}
	if in.ExpiryDays < 0 {
		return nil, fmt.Errorf("%w: expiry_days must not be negative", repository.ErrValidation)
	}

	expiresAt := in.ExpiresAt
	if expiresAt == nil {
		days := in.ExpiryDays
		if days == 0 {
			days = s.expiryDays
		}
		t := models.ExpiryAfterDays(s.now(), days)
		expiresAt = &t
	}

	sec := &models.Secret{OwnerID: owner, SecretValue: in.SecretValue, SecretType: in.SecretType, ExpiresAt: expiresAt}
	if _, err := s.store.AddSecret(ctx, sec); err != nil {
		return nil, err
	}
	return sec, nil
}

// SecretByID returns a secret the caller owns, or any secret for admins.
func (s *Service) SecretByID(ctx context.Context, username, password string, id int64) (*models.Secret, error) {
	ctx, u, err := s.caller(ctx, username, password)
	if err != nil {
		return nil, err
	}
	return s.ownedSecret(ctx, u, id)
}

// UpdateSecret patches a secret the caller owns, or any secret for admins, and
// returns the stored result.
func (s *Service) UpdateSecret(ctx context.Context, username, password string, id int64, patch models.SecretPatch) (*models.Secret, error) {
	ctx, u, err := s.caller(ctx, username, password)
	if err != nil {
		return nil, err
	}
	if _, err := s.ownedSecret(ctx, u, id); err != nil {
		return nil, err
	}
	if _, err := s.store.UpdateSecret(ctx, id, patch); err != nil {
		return nil, err
	}
	return s.store.GetSecretByID(ctx, id)
}

// DeleteSecret removes a secret the caller owns, or any secret for admins.
// A missing secret reports false without error.
func (s *Service) DeleteSecret(ctx context.Context, username, password string, id int64) (bool, error) {
	ctx, u, err := s.caller(ctx, username, password)
	if err != nil {
		return false, err
	}
	if _, err := s.ownedSecret(ctx, u, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return s.store.DeleteSecret(ctx, id)
}

func (s *Service) ownedSecret(ctx context.Context, u *models.User, id int64) (*models.Secret, error) {
	sec, err := s.store.GetSecretByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if sec.OwnerID != u.ID && !u.IsAdmin() {
		return nil, fmt.Errorf("%w: secret %d belongs to another user", ErrForbidden, id)
	}
	return sec, nil
}
