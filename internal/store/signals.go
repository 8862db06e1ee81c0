package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/triage-ai/warden/internal/engine"
)

// ViolationTypeRateLimit is the violations.violation_type value counted by
// the rate-limit signal.
const ViolationTypeRateLimit = "rate_limit"

// CountViolationsSince returns the number of rate-limit violations recorded
// for a user at or after since.
func (s *Store) CountViolationsSince(ctx context.Context, userID string, since time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT count(*) FROM violations
		WHERE user_id = $1 AND violation_type = $2 AND created_at >= $3`,
		userID, ViolationTypeRateLimit, since,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("CountViolationsSince: %w", err)
	}
	return n, nil
}

// GetUserStats returns the chat activity of a user. A user without a stats
// row has sent no messages.
func (s *Store) GetUserStats(ctx context.Context, userID string) (engine.UserStats, error) {
	var st engine.UserStats
	err := s.db.QueryRowContext(ctx,
		`SELECT message_count FROM user_stats WHERE user_id = $1`, userID,
	).Scan(&st.MessageCount)
	if err == sql.ErrNoRows {
		return engine.UserStats{}, nil
	}
	if err != nil {
		return engine.UserStats{}, fmt.Errorf("GetUserStats: %w", err)
	}
	return st, nil
}
