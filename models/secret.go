package models

import "time"

// DefaultExpiryDays is applied when a secret is created without an explicit expiry.
const DefaultExpiryDays = 90

// Secret is an opaque value owned by a single user.
// owner_id references users.id and never changes after creation.
type Secret struct {
	ID          int64      `db:"id" json:"id"`
	OwnerID     int64      `db:"owner_id" json:"owner_id"`
	SecretValue string     `db:"secret_value" json:"secret_value"`
	SecretType  string     `db:"secret_type" json:"secret_type"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	ExpiresAt   *time.Time `db:"expires_at" json:"expires_at,omitempty"`
}

// Expired reports whether the secret has an expiry at or before now.
func (s *Secret) Expired(now time.Time) bool {
	return s.ExpiresAt != nil && !s.ExpiresAt.After(now)
}

// SecretPatch carries the mutable fields of a secret. ExpiresAt replaces the
// stored expiry as-is, so nil clears it.
type SecretPatch struct {
	SecretValue string     `json:"secret_value"`
	SecretType  string     `json:"secret_type"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

// SecretWithOwner is the joined projection of a secret and its owning user.
// Only the owner queries produce it; the base Secret never carries owner data.
type SecretWithOwner struct {
	Secret
	OwnerUsername string `db:"owner_username" json:"owner_username"`
	OwnerRole     string `db:"owner_role" json:"owner_role"`
}

// ExpiryAfterDays returns now shifted by the given number of days, falling back
// to DefaultExpiryDays when days is not positive.
func ExpiryAfterDays(now time.Time, days int) time.Time {
	if days <= 0 {
		days = DefaultExpiryDays
	}
	return now.AddDate(0, 0, days)
}
