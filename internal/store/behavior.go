package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/triage-ai/warden/internal/engine"
)

// UpsertBehaviorMetrics writes the per-user timing summary. Concurrent
// writers for the same user resolve last-write-wins.
func (s *Store) UpsertBehaviorMetrics(ctx context.Context, m engine.BehaviorMetrics) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO behavior_metrics
			(user_id, total_commands, avg_interval_sec, stddev_interval_sec,
			 coefficient_variation_bp, last_command_at, last_analysis_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id) DO UPDATE SET
			total_commands           = EXCLUDED.total_commands,
			avg_interval_sec         = EXCLUDED.avg_interval_sec,
			stddev_interval_sec      = EXCLUDED.stddev_interval_sec,
			coefficient_variation_bp = EXCLUDED.coefficient_variation_bp,
			last_command_at          = EXCLUDED.last_command_at,
			last_analysis_at         = EXCLUDED.last_analysis_at`,
		m.UserID, m.TotalCommands, m.AvgIntervalSec, m.StdDevIntervalSec,
		m.CVBasisPoints, m.LastCommandAt, m.LastAnalysisAt,
	)
	if err != nil {
		return fmt.Errorf("UpsertBehaviorMetrics: %w", err)
	}
	return nil
}

// GetBehaviorMetrics returns the stored summary for a user, or nil if the
// user has never been analyzed.
func (s *Store) GetBehaviorMetrics(ctx context.Context, userID string) (*engine.BehaviorMetrics, error) {
	var m engine.BehaviorMetrics
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, total_commands, avg_interval_sec, stddev_interval_sec,
		       coefficient_variation_bp, last_command_at, last_analysis_at
		FROM behavior_metrics WHERE user_id = $1`, userID,
	).Scan(&m.UserID, &m.TotalCommands, &m.AvgIntervalSec, &m.StdDevIntervalSec,
		&m.CVBasisPoints, &m.LastCommandAt, &m.LastAnalysisAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GetBehaviorMetrics: %w", err)
	}
	return &m, nil
}
