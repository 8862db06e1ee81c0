package auth

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/triage-ai/warden/internal/store"
)

// testAPIKey is the raw API key used in tests. Must start with "wsk_" and be >= 8 chars.
const testAPIKey = "wsk_test_valid_key_1234567890abcdef"

const authHeader = "Bearer " + testAPIKey

// testHash returns a bcrypt hash of testAPIKey using MinCost (fast for tests).
func testHash(t *testing.T) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(testAPIKey), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to generate bcrypt hash: %v", err)
	}
	return string(hash)
}

// mockStore implements ClientStore for testing.
type mockStore struct {
	row       atomic.Pointer[store.APIClient]
	err       error
	callCount atomic.Int32
}

func newMockStore(row *store.APIClient) *mockStore {
	m := &mockStore{}
	m.row.Store(row)
	return m
}

func (m *mockStore) LookupByPrefix(_ context.Context, _ string) (*store.APIClient, error) {
	m.callCount.Add(1)
	if m.err != nil {
		return nil, m.err
	}
	return m.row.Load(), nil
}

func TestPostgresAuth_CacheMiss_ValidKey(t *testing.T) {
	s := newMockStore(&store.APIClient{ID: "client_abc", Name: "economy-bot", APIKeyHash: testHash(t)})
	a := NewPostgresAuthenticator(s, time.Minute, zap.NewNop())

	client, err := a.Authenticate(context.Background(), authHeader)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if client.ClientID != "client_abc" || client.Name != "economy-bot" {
		t.Errorf("unexpected client %+v", client)
	}
	if s.callCount.Load() != 1 {
		t.Errorf("expected 1 DB call, got %d", s.callCount.Load())
	}
}

func TestPostgresAuth_CacheHit_NoDBCall(t *testing.T) {
	s := newMockStore(&store.APIClient{ID: "client_abc", APIKeyHash: testHash(t)})
	a := NewPostgresAuthenticator(s, time.Minute, zap.NewNop())

	if _, err := a.Authenticate(context.Background(), authHeader); err != nil {
		t.Fatalf("first call failed: %v", err)
	}
	if _, err := a.Authenticate(context.Background(), authHeader); err != nil {
		t.Fatalf("second call failed: %v", err)
	}
	if s.callCount.Load() != 1 {
		t.Errorf("expected still 1 DB call (cache hit), got %d", s.callCount.Load())
	}
}

func TestPostgresAuth_WrongKeyRejected(t *testing.T) {
	s := newMockStore(&store.APIClient{ID: "client_abc", APIKeyHash: testHash(t)})
	a := NewPostgresAuthenticator(s, time.Minute, zap.NewNop())

	_, err := a.Authenticate(context.Background(), "Bearer wsk_test_WRONG_key")
	if !errors.Is(err, ErrInvalidAPIKey) {
		t.Errorf("expected ErrInvalidAPIKey, got: %v", err)
	}
}

func TestPostgresAuth_ClientNotFound(t *testing.T) {
	s := newMockStore(nil)
	a := NewPostgresAuthenticator(s, time.Minute, zap.NewNop())

	_, err := a.Authenticate(context.Background(), authHeader)
	if !errors.Is(err, ErrInvalidAPIKey) {
		t.Errorf("expected ErrInvalidAPIKey, got: %v", err)
	}
}

func TestPostgresAuth_DBDown_ReturnsUnavailable(t *testing.T) {
	s := &mockStore{err: errors.New("connection refused")}
	a := NewPostgresAuthenticator(s, time.Minute, zap.NewNop())

	_, err := a.Authenticate(context.Background(), authHeader)
	if !errors.Is(err, ErrAuthUnavailable) {
		t.Errorf("expected ErrAuthUnavailable, got: %v", err)
	}
}

func TestPostgresAuth_MissingAPIKey(t *testing.T) {
	s := newMockStore(nil)
	a := NewPostgresAuthenticator(s, time.Minute, zap.NewNop())

	_, err := a.Authenticate(context.Background(), "")
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("expected ErrMissingAPIKey, got: %v", err)
	}
	if s.callCount.Load() != 0 {
		t.Error("DB should not be called when API key is missing")
	}
}

func TestPostgresAuth_StaleHit_ServesStaleAndRefreshes(t *testing.T) {
	hash := testHash(t)
	s := newMockStore(&store.APIClient{ID: "client_stale", Name: "old-name", APIKeyHash: hash})
	a := NewPostgresAuthenticator(s, time.Millisecond, zap.NewNop())

	client, err := a.Authenticate(context.Background(), authHeader)
	if err != nil {
		t.Fatalf("first call failed: %v", err)
	}
	if client.Name != "old-name" {
		t.Fatalf("expected old-name, got %s", client.Name)
	}

	time.Sleep(5 * time.Millisecond)
	s.row.Store(&store.APIClient{ID: "client_stale", Name: "new-name", APIKeyHash: hash})

	stale, err := a.Authenticate(context.Background(), authHeader)
	if err != nil {
		t.Fatalf("second call failed: %v", err)
	}
	if stale.Name != "old-name" {
		t.Errorf("stale hit should return old name, got %s", stale.Name)
	}

	time.Sleep(200 * time.Millisecond)

	fresh, err := a.Authenticate(context.Background(), authHeader)
	if err != nil {
		t.Fatalf("third call failed: %v", err)
	}
	if fresh.Name != "new-name" {
		t.Errorf("expected refreshed name, got %s", fresh.Name)
	}
}
