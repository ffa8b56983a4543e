package auth

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"

	"google.golang.org/grpc/metadata"
)

// Credentials is the username/password pair presented by a caller.
// They are verified by the access layer, not here.
type Credentials struct {
	Username string
	Password string
}

type credentialsKey struct{}

// WithCredentials stores the caller's credentials in context.
func WithCredentials(ctx context.Context, c Credentials) context.Context {
	return context.WithValue(ctx, credentialsKey{}, c)
}

// FromContext retrieves the credentials from context (if any).
func FromContext(ctx context.Context) (Credentials, bool) {
	c, ok := ctx.Value(credentialsKey{}).(Credentials)
	return c, ok
}

var (
	errMissingAuthorization = errors.New("missing authorization")
	errInvalidAuthorization = errors.New("invalid authorization header")
)

// ParseBasic decodes an "Authorization: Basic ..." header value.
func ParseBasic(header string) (Credentials, error) {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Basic") {
		return Credentials{}, errInvalidAuthorization
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(parts[1]))
	if err != nil {
		return Credentials{}, errInvalidAuthorization
	}
	user, pass, ok := strings.Cut(string(raw), ":")
	if !ok || user == "" {
		return Credentials{}, errInvalidAuthorization
	}
	return Credentials{Username: user, Password: pass}, nil
}

// ParseFromMD extracts Basic credentials from incoming gRPC metadata.
func ParseFromMD(ctx context.Context) (Credentials, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return Credentials{}, errors.New("missing metadata")
	}
	vals := md.Get("authorization")
	if len(vals) == 0 {
		return Credentials{}, errMissingAuthorization
	}
	return ParseBasic(vals[0])
}
