package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/triage-ai/warden/internal/engine"
)

// InsertCommandEvent appends a command execution to the history table and
// returns its generated ID.
func (s *Store) InsertCommandEvent(ctx context.Context, e engine.CommandEvent) (string, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}

	var metadata []byte
	if len(e.Metadata) > 0 {
		b, err := json.Marshal(e.Metadata)
		if err != nil {
			return "", fmt.Errorf("InsertCommandEvent: %w", err)
		}
		metadata = b
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO command_events
			(id, user_id, guild_id, command_name, executed_at, success, response_time_ms, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID, e.UserID, e.GuildID, e.CommandName, e.ExecutedAt, e.Success,
		e.ResponseTimeMs, metadata,
	)
	if err != nil {
		return "", fmt.Errorf("InsertCommandEvent: %w", err)
	}
	return e.ID, nil
}

// RecentCommandEvents returns up to limit events for a user, newest first.
func (s *Store) RecentCommandEvents(ctx context.Context, userID string, limit int) ([]engine.CommandEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, guild_id, command_name, executed_at, success,
		       response_time_ms, COALESCE(metadata, 'null'::jsonb)
		FROM command_events
		WHERE user_id = $1
		ORDER BY executed_at DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("RecentCommandEvents: %w", err)
	}
	defer rows.Close()

	var events []engine.CommandEvent
	for rows.Next() {
		var (
			e        engine.CommandEvent
			respTime *int
			metadata json.RawMessage
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.GuildID, &e.CommandName,
			&e.ExecutedAt, &e.Success, &respTime, &metadata); err != nil {
			return nil, fmt.Errorf("RecentCommandEvents: %w", err)
		}
		e.ResponseTimeMs = respTime
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &e.Metadata); err != nil {
				return nil, fmt.Errorf("RecentCommandEvents: metadata: %w", err)
			}
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// CountCommandEvents returns the total number of recorded events for a user.
func (s *Store) CountCommandEvents(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM command_events WHERE user_id = $1`, userID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("CountCommandEvents: %w", err)
	}
	return n, nil
}
