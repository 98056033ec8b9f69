// Package auth provides credential verification and session handling.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/robsonsouzans/listans/internal/model"
)

// Sentinel errors for authentication failures.
var (
	ErrUnauthenticated    = errors.New("unauthenticated: no credentials provided")
	ErrInvalidToken       = errors.New("invalid session token")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Authenticator validates a request and returns the authenticated user.
type Authenticator interface {
	Authenticate(r *http.Request) (*model.User, error)
}

// contextKey is the type for context keys in this package.
type contextKey string

const userKey contextKey = "auth_user"

// FromContext retrieves the authenticated user from the context.
func FromContext(ctx context.Context) (*model.User, bool) {
	user, ok := ctx.Value(userKey).(*model.User)
	return user, ok
}

// WithUser stores the authenticated user in the context.
func WithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// BearerToken extracts the bearer token from the Authorization header.
// Returns an empty string when the header is missing or not a bearer scheme.
func BearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
