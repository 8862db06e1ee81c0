package store

import (
	"context"
	"fmt"

	"github.com/triage-ai/warden/internal/engine"
)

// getOrInitTrustQuery upserts with a no-op update so RETURNING always yields
// the row, including when a concurrent caller inserted it first.
const getOrInitTrustQuery = `
		INSERT INTO trust_scores (user_id, guild_id, score)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, guild_id) DO UPDATE SET user_id = EXCLUDED.user_id
		RETURNING user_id, guild_id, score, created_at, updated_at`

// GetOrInitTrust returns the trust row for (user, guild), creating it at the
// neutral default on first access.
func (s *Store) GetOrInitTrust(ctx context.Context, userID, guildID string) (*engine.TrustScore, error) {
	var ts engine.TrustScore
	err := s.db.QueryRowContext(ctx, getOrInitTrustQuery,
		userID, guildID, engine.DefaultTrustScore,
	).Scan(&ts.UserID, &ts.GuildID, &ts.Score, &ts.CreatedAt, &ts.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("GetOrInitTrust: %w", err)
	}
	return &ts, nil
}

// ApplyTrustDelta adds a signed delta to the (user, guild) trust score,
// clamped to [0,1000]. The row is locked for the read-modify-write and the
// change is appended to trust_score_changes in the same transaction.
func (s *Store) ApplyTrustDelta(ctx context.Context, userID, guildID string, delta int, reason string) (engine.TrustChange, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return engine.TrustChange{}, fmt.Errorf("ApplyTrustDelta: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO trust_scores (user_id, guild_id, score)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, guild_id) DO NOTHING`,
		userID, guildID, engine.DefaultTrustScore,
	); err != nil {
		return engine.TrustChange{}, fmt.Errorf("ApplyTrustDelta: init: %w", err)
	}

	var current int
	if err := tx.QueryRowContext(ctx, `
		SELECT score FROM trust_scores
		WHERE user_id = $1 AND guild_id = $2
		FOR UPDATE`, userID, guildID,
	).Scan(&current); err != nil {
		return engine.TrustChange{}, fmt.Errorf("ApplyTrustDelta: lock: %w", err)
	}

	change := engine.ApplyTrustDelta(current, delta)

	if _, err := tx.ExecContext(ctx, `
		UPDATE trust_scores SET score = $3, updated_at = now()
		WHERE user_id = $1 AND guild_id = $2`,
		userID, guildID, change.NewScore,
	); err != nil {
		return engine.TrustChange{}, fmt.Errorf("ApplyTrustDelta: update: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO trust_score_changes (user_id, guild_id, delta, old_score, new_score, reason)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		userID, guildID, delta, change.OldScore, change.NewScore, reason,
	); err != nil {
		return engine.TrustChange{}, fmt.Errorf("ApplyTrustDelta: history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return engine.TrustChange{}, fmt.Errorf("ApplyTrustDelta: %w", err)
	}
	return change, nil
}

// ListTrustChanges returns the most recent trust changes for (user, guild),
// newest first.
func (s *Store) ListTrustChanges(ctx context.Context, userID, guildID string, limit int) ([]engine.TrustScoreChange, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, guild_id, delta, old_score, new_score, reason, created_at
		FROM trust_score_changes
		WHERE user_id = $1 AND guild_id = $2
		ORDER BY created_at DESC, id DESC
		LIMIT $3`, userID, guildID, limit)
	if err != nil {
		return nil, fmt.Errorf("ListTrustChanges: %w", err)
	}
	defer rows.Close()

	var changes []engine.TrustScoreChange
	for rows.Next() {
		var c engine.TrustScoreChange
		if err := rows.Scan(&c.ID, &c.UserID, &c.GuildID, &c.Delta,
			&c.OldScore, &c.NewScore, &c.Reason, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("ListTrustChanges: %w", err)
		}
		changes = append(changes, c)
	}
	return changes, rows.Err()
}
