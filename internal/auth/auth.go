package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"

	"github.com/triage-ai/warden/internal/store"
)

var (
	ErrMissingAPIKey   = errors.New("missing authorization header")
	ErrInvalidAPIKey   = errors.New("invalid API key")
	ErrAuthUnavailable = errors.New("auth backend unavailable")
)

// ClientContext identifies the authenticated bot deployment.
type ClientContext struct {
	ClientID string
	Name     string
}

// Authenticator validates the Authorization header of an incoming request.
type Authenticator interface {
	Authenticate(ctx context.Context, authorization string) (*ClientContext, error)
}

// ExtractAPIKey pulls a wsk_ key out of an Authorization header value.
func ExtractAPIKey(authorization string) (string, error) {
	token := strings.TrimSpace(authorization)
	if token == "" {
		return "", ErrMissingAPIKey
	}
	// RFC 6750: the "Bearer" scheme is case-insensitive.
	if len(token) > 7 && strings.EqualFold(token[:7], "bearer ") {
		token = strings.TrimSpace(token[7:])
	}
	if !strings.HasPrefix(token, store.APIKeyPrefix) || len(token) < 8 {
		return "", ErrInvalidAPIKey
	}
	return token, nil
}

// AdminAuthenticator guards moderator endpoints with a single shared token.
type AdminAuthenticator struct {
	token []byte
}

// NewAdminAuthenticator creates an AdminAuthenticator. An empty token
// rejects every request.
func NewAdminAuthenticator(token string) *AdminAuthenticator {
	return &AdminAuthenticator{token: []byte(token)}
}

func (a *AdminAuthenticator) Authenticate(_ context.Context, authorization string) (*ClientContext, error) {
	token := strings.TrimSpace(authorization)
	if token == "" {
		return nil, ErrMissingAPIKey
	}
	if len(token) > 7 && strings.EqualFold(token[:7], "bearer ") {
		token = strings.TrimSpace(token[7:])
	}
	if len(a.token) == 0 || subtle.ConstantTimeCompare([]byte(token), a.token) != 1 {
		return nil, ErrInvalidAPIKey
	}
	return &ClientContext{ClientID: "admin", Name: "admin"}, nil
}
