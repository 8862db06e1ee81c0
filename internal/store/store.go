package store

import (
	"context"
	"database/sql"
	"errors"
)

// ErrNotFound is returned by mutations whose target row does not exist.
// Reads signal absence with a nil result instead.
var ErrNotFound = errors.New("not found")

// Store provides access to the PostgreSQL database: command history,
// behavior metrics, the trust ledger, suspicion records and API clients.
type Store struct {
	db *sql.DB
}

// NewStore creates a Store backed by the given database connection pool.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
