package access

import "errors"

var (
	// ErrUnauthorized is returned when credentials do not resolve to a role.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden is returned when an authenticated caller acts on another user's data.
	ErrForbidden = errors.New("forbidden")
)
