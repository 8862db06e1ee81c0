package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/triage-ai/warden/internal/engine"
)

// ListSuspicionParams holds filters and pagination for suspicion record listing.
type ListSuspicionParams struct {
	GuildID  *string
	UserID   *string
	Resolved *bool
	MinScore *int
	Page     int
	PageSize int
}

const suspicionColumns = `id, user_id, guild_id, total_score, timing_score, behavioral_score,
	social_score, account_score, rate_limit_score, recommendation, detected_at,
	resolved, COALESCE(resolution_notes, ''), resolved_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSuspicionRecord(row rowScanner, r *engine.SuspicionRecord) error {
	var rec string
	err := row.Scan(&r.ID, &r.UserID, &r.GuildID,
		&r.Breakdown.TotalScore, &r.Breakdown.TimingScore, &r.Breakdown.BehavioralScore,
		&r.Breakdown.SocialScore, &r.Breakdown.AccountScore, &r.Breakdown.RateLimitScore,
		&rec, &r.DetectedAt, &r.Resolved, &r.ResolutionNotes, &r.ResolvedAt)
	r.Recommendation = engine.Recommendation(rec)
	return err
}

// InsertSuspicionRecord persists an audit copy of a suspicion breakdown and
// returns its ID.
func (s *Store) InsertSuspicionRecord(ctx context.Context, r *engine.SuspicionRecord) (string, error) {
	b := r.Breakdown
	var id string
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO suspicion_records
			(user_id, guild_id, total_score, timing_score, behavioral_score,
			 social_score, account_score, rate_limit_score, recommendation, detected_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`,
		r.UserID, r.GuildID, b.TotalScore, b.TimingScore, b.BehavioralScore,
		b.SocialScore, b.AccountScore, b.RateLimitScore, string(r.Recommendation), r.DetectedAt,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("InsertSuspicionRecord: %w", err)
	}
	return id, nil
}

// ListSuspicionRecords returns paginated, filtered records newest first and
// the total count.
func (s *Store) ListSuspicionRecords(ctx context.Context, params ListSuspicionParams) ([]*engine.SuspicionRecord, int, error) {
	var (
		conditions []string
		args       []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}
	if params.GuildID != nil {
		add("guild_id = $%d", *params.GuildID)
	}
	if params.UserID != nil {
		add("user_id = $%d", *params.UserID)
	}
	if params.Resolved != nil {
		add("resolved = $%d", *params.Resolved)
	}
	if params.MinScore != nil {
		add("total_score >= $%d", *params.MinScore)
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx,
		"SELECT count(*) FROM suspicion_records "+where, args...,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("ListSuspicionRecords count: %w", err)
	}

	offset := (params.Page - 1) * params.PageSize
	args = append(args, params.PageSize, offset)
	query := fmt.Sprintf("SELECT %s FROM suspicion_records %s ORDER BY detected_at DESC LIMIT $%d OFFSET $%d",
		suspicionColumns, where, len(args)-1, len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("ListSuspicionRecords: %w", err)
	}
	defer rows.Close()

	var records []*engine.SuspicionRecord
	for rows.Next() {
		var r engine.SuspicionRecord
		if err := scanSuspicionRecord(rows, &r); err != nil {
			return nil, 0, fmt.Errorf("ListSuspicionRecords scan: %w", err)
		}
		records = append(records, &r)
	}
	return records, total, rows.Err()
}

// ResolveSuspicionRecord marks a record resolved with moderator notes.
// Returns nil if the record does not exist.
func (s *Store) ResolveSuspicionRecord(ctx context.Context, id, notes string) (*engine.SuspicionRecord, error) {
	var r engine.SuspicionRecord
	err := scanSuspicionRecord(s.db.QueryRowContext(ctx, `
		UPDATE suspicion_records SET
			resolved         = true,
			resolution_notes = $2,
			resolved_at      = now()
		WHERE id = $1
		RETURNING `+suspicionColumns, id, notes), &r)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ResolveSuspicionRecord: %w", err)
	}
	return &r, nil
}
