package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/triage-ai/warden/internal/cache"
	"github.com/triage-ai/warden/internal/store"
)

// ClientStore abstracts DB queries for testability.
type ClientStore interface {
	LookupByPrefix(ctx context.Context, prefix string) (*store.APIClient, error)
}

// PostgresAuthenticator validates API keys against the api_clients table.
// Uses a stale-while-revalidate cache to avoid DB + bcrypt on the hot path.
// Auth failures always return an error.
type PostgresAuthenticator struct {
	store  ClientStore
	cache  *cache.SWR[*ClientContext]
	logger *zap.Logger
}

// NewPostgresAuthenticator creates a new authenticator backed by the client
// store. ttl defaults to 30s.
func NewPostgresAuthenticator(s ClientStore, ttl time.Duration, logger *zap.Logger) *PostgresAuthenticator {
	if ttl == 0 {
		ttl = 30 * time.Second
	}
	return &PostgresAuthenticator{
		store:  s,
		cache:  cache.NewSWR[*ClientContext](ttl),
		logger: logger,
	}
}

// Authenticate validates the API key in the Authorization header.
//
// Flow:
//  1. Extract Bearer wsk_...
//  2. Cache lookup (stale-while-revalidate):
//     - Fresh hit: return immediately
//     - Stale hit: return stale client, spawn background refresh
//     - Miss: do full DB + bcrypt lookup synchronously
//  3. DB errors surface as ErrAuthUnavailable
func (a *PostgresAuthenticator) Authenticate(ctx context.Context, authorization string) (*ClientContext, error) {
	apiKey, err := ExtractAPIKey(authorization)
	if err != nil {
		return nil, err
	}

	result := a.cache.Get(apiKey)
	if result.Hit {
		if result.NeedsRefresh {
			go a.backgroundRefresh(apiKey)
		}
		return result.Value, nil
	}

	client, err := a.lookupAndVerify(ctx, apiKey)
	if err != nil {
		return nil, a.handleLookupError(err)
	}

	a.cache.Set(apiKey, client)
	return client, nil
}

// backgroundRefresh performs the DB + bcrypt lookup in a background goroutine.
// Errors are logged but don't affect the caller (they already got the stale value).
func (a *PostgresAuthenticator) backgroundRefresh(apiKey string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := a.lookupAndVerify(ctx, apiKey)
	if err != nil {
		a.logger.Warn("background cache refresh failed", zap.Error(err))
		// Drop the entry so a revoked key stops working and the next
		// request retries synchronously.
		a.cache.Delete(apiKey)
		return
	}

	a.cache.Set(apiKey, client)
}

// lookupAndVerify does the DB prefix lookup + bcrypt verification.
func (a *PostgresAuthenticator) lookupAndVerify(ctx context.Context, apiKey string) (*ClientContext, error) {
	// api_key_prefix is the first 8 chars (e.g. "wsk_abcd")
	prefix := apiKey[:8]

	row, err := a.store.LookupByPrefix(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("lookupAndVerify: %w", err)
	}
	if row == nil {
		return nil, ErrInvalidAPIKey
	}

	if err := bcrypt.CompareHashAndPassword([]byte(row.APIKeyHash), []byte(apiKey)); err != nil {
		return nil, ErrInvalidAPIKey
	}

	return &ClientContext{ClientID: row.ID, Name: row.Name}, nil
}

func (a *PostgresAuthenticator) handleLookupError(lookupErr error) error {
	if errors.Is(lookupErr, ErrInvalidAPIKey) {
		return ErrInvalidAPIKey
	}
	a.logger.Warn("auth DB unreachable", zap.Error(lookupErr))
	return fmt.Errorf("%w: %v", ErrAuthUnavailable, lookupErr)
}
