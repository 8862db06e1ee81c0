package chread

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"
)

// Reader provides read access to the ClickHouse enforcement_events table.
type Reader struct {
	conn   driver.Conn
	logger *zap.Logger
}

// NewReader opens a ClickHouse connection for read queries.
func NewReader(dsn string, logger *zap.Logger) (*Reader, error) {
	opts, err := clickhouse.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("NewReader: %w", err)
	}
	if opts.TLS == nil {
		opts.TLS = &tls.Config{}
	}

	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("NewReader: %w", err)
	}
	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("NewReader: %w", err)
	}

	return &Reader{conn: conn, logger: logger}, nil
}

// Close closes the ClickHouse connection.
func (r *Reader) Close() error {
	return r.conn.Close()
}

// DecisionRow represents a single row from the enforcement_events table.
type DecisionRow struct {
	EventID             string    `json:"event_id"`
	UserID              string    `json:"user_id"`
	GuildID             string    `json:"guild_id"`
	Timestamp           time.Time `json:"timestamp"`
	TotalScore          uint8     `json:"total_score"`
	TimingScore         uint8     `json:"timing_score"`
	BehavioralScore     uint8     `json:"behavioral_score"`
	SocialScore         uint8     `json:"social_score"`
	AccountScore        uint8     `json:"account_score"`
	RateLimitScore      uint8     `json:"rate_limit_score"`
	TrustScore          uint16    `json:"trust_score"`
	Action              string    `json:"action"`
	CaptchaType         string    `json:"captcha_type"`
	RateLimitMultiplier float32   `json:"rate_limit_multiplier"`
	RestrictDurationMs  uint32    `json:"restrict_duration_ms"`
	Recommendation      string    `json:"recommendation"`
	Source              string    `json:"source"`
}

// ListDecisionsParams holds filters and pagination for decision listing.
type ListDecisionsParams struct {
	GuildID   string
	UserID    *string
	Action    *string
	MinScore  *int
	StartTime *time.Time
	EndTime   *time.Time
	Page      int
	PageSize  int
}

const decisionColumns = "event_id, user_id, guild_id, timestamp, " +
	"total_score, timing_score, behavioral_score, social_score, account_score, rate_limit_score, " +
	"trust_score, action, captcha_type, rate_limit_multiplier, restrict_duration_ms, " +
	"recommendation, source"

// ListDecisions returns paginated, filtered enforcement events and the total count.
func (r *Reader) ListDecisions(ctx context.Context, params ListDecisionsParams) ([]DecisionRow, int, error) {
	conditions := []string{"guild_id = @guild_id"}
	args := []any{
		clickhouse.Named("guild_id", params.GuildID),
	}

	if params.UserID != nil {
		conditions = append(conditions, "user_id = @user_id")
		args = append(args, clickhouse.Named("user_id", *params.UserID))
	}
	if params.Action != nil {
		conditions = append(conditions, "action = @action")
		args = append(args, clickhouse.Named("action", *params.Action))
	}
	if params.MinScore != nil {
		conditions = append(conditions, "total_score >= @min_score")
		args = append(args, clickhouse.Named("min_score", uint8(max(0, min(100, *params.MinScore)))))
	}
	if params.StartTime != nil {
		conditions = append(conditions, "timestamp >= @start_time")
		args = append(args, clickhouse.Named("start_time", *params.StartTime))
	}
	if params.EndTime != nil {
		conditions = append(conditions, "timestamp <= @end_time")
		args = append(args, clickhouse.Named("end_time", *params.EndTime))
	}

	where := strings.Join(conditions, " AND ")
	offset := (params.Page - 1) * params.PageSize

	var total uint64
	countQuery := fmt.Sprintf("SELECT count() FROM enforcement_events WHERE %s", where)
	if err := r.conn.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("ListDecisions count: %w", err)
	}

	dataQuery := fmt.Sprintf(
		"SELECT %s FROM enforcement_events WHERE %s "+
			"ORDER BY timestamp DESC "+
			"LIMIT @limit OFFSET @offset",
		decisionColumns, where,
	)
	args = append(args,
		clickhouse.Named("limit", uint32(params.PageSize)),
		clickhouse.Named("offset", uint32(offset)),
	)

	rows, err := r.conn.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("ListDecisions query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var decisions []DecisionRow
	for rows.Next() {
		var d DecisionRow
		if err := rows.Scan(
			&d.EventID, &d.UserID, &d.GuildID, &d.Timestamp,
			&d.TotalScore, &d.TimingScore, &d.BehavioralScore, &d.SocialScore,
			&d.AccountScore, &d.RateLimitScore,
			&d.TrustScore, &d.Action, &d.CaptchaType, &d.RateLimitMultiplier,
			&d.RestrictDurationMs, &d.Recommendation, &d.Source,
		); err != nil {
			return nil, 0, fmt.Errorf("ListDecisions scan: %w", err)
		}
		decisions = append(decisions, d)
	}

	return decisions, int(total), rows.Err()
}

// ActionCount holds an action name and its count.
type ActionCount struct {
	Action string `json:"action"`
	Count  int    `json:"count"`
}

// TimeSeriesBucket holds an hourly count.
type TimeSeriesBucket struct {
	Hour  string `json:"hour"`
	Count int    `json:"count"`
}

// ComponentAverages holds the mean of each suspicion component.
type ComponentAverages struct {
	Timing     float64 `json:"timing"`
	Behavioral float64 `json:"behavioral"`
	Social     float64 `json:"social"`
	Account    float64 `json:"account"`
	RateLimit  float64 `json:"rate_limit"`
}

// UserCount holds a user_id and its count.
type UserCount struct {
	UserID string `json:"user_id"`
	Count  int    `json:"count"`
}

// AnalyticsResult holds all analytics aggregations.
type AnalyticsResult struct {
	TotalDecisions       int                `json:"total_decisions"`
	ActionBreakdown      []ActionCount      `json:"action_breakdown"`
	RestrictionsOverTime []TimeSeriesBucket `json:"restrictions_over_time"`
	AverageComponents    ComponentAverages  `json:"average_components"`
	TopSuspiciousUsers   []UserCount        `json:"top_suspicious_users"`
}

// GetAnalytics returns aggregated enforcement analytics for a guild over the
// given number of days.
func (r *Reader) GetAnalytics(ctx context.Context, guildID string, days int) (*AnalyticsResult, error) {
	rangeStart := time.Now().UTC().Add(-time.Duration(days) * 24 * time.Hour)

	baseArgs := []any{
		clickhouse.Named("guild_id", guildID),
		clickhouse.Named("range_start", rangeStart),
	}

	result := &AnalyticsResult{}

	// Action breakdown
	actRows, err := r.conn.Query(ctx,
		"SELECT action, count() as count "+
			"FROM enforcement_events "+
			"WHERE guild_id = @guild_id AND source = 'decision' AND timestamp >= @range_start "+
			"GROUP BY action ORDER BY count DESC",
		baseArgs...,
	)
	if err != nil {
		return nil, fmt.Errorf("GetAnalytics actions: %w", err)
	}
	defer func() { _ = actRows.Close() }()
	for actRows.Next() {
		var action string
		var count uint64
		if err := actRows.Scan(&action, &count); err != nil {
			return nil, fmt.Errorf("GetAnalytics actions scan: %w", err)
		}
		result.ActionBreakdown = append(result.ActionBreakdown, ActionCount{Action: action, Count: int(count)})
		result.TotalDecisions += int(count)
	}

	// Restrictions over time (hourly)
	resRows, err := r.conn.Query(ctx,
		"SELECT toStartOfHour(timestamp) as hour, count() as count "+
			"FROM enforcement_events "+
			"WHERE guild_id = @guild_id AND action = 'restrict' "+
			"AND timestamp >= @range_start "+
			"GROUP BY hour ORDER BY hour",
		baseArgs...,
	)
	if err != nil {
		return nil, fmt.Errorf("GetAnalytics restrictions_over_time: %w", err)
	}
	defer func() { _ = resRows.Close() }()
	for resRows.Next() {
		var hour time.Time
		var count uint64
		if err := resRows.Scan(&hour, &count); err != nil {
			return nil, fmt.Errorf("GetAnalytics restrictions_over_time scan: %w", err)
		}
		result.RestrictionsOverTime = append(result.RestrictionsOverTime, TimeSeriesBucket{
			Hour:  hour.Format(time.RFC3339),
			Count: int(count),
		})
	}

	// Component averages
	var avg ComponentAverages
	err = r.conn.QueryRow(ctx,
		"SELECT avg(timing_score), avg(behavioral_score), avg(social_score), "+
			"avg(account_score), avg(rate_limit_score) "+
			"FROM enforcement_events "+
			"WHERE guild_id = @guild_id AND timestamp >= @range_start",
		baseArgs...,
	).Scan(&avg.Timing, &avg.Behavioral, &avg.Social, &avg.Account, &avg.RateLimit)
	if err != nil {
		return nil, fmt.Errorf("GetAnalytics components: %w", err)
	}
	result.AverageComponents = ComponentAverages{
		Timing:     safeFloat(avg.Timing),
		Behavioral: safeFloat(avg.Behavioral),
		Social:     safeFloat(avg.Social),
		Account:    safeFloat(avg.Account),
		RateLimit:  safeFloat(avg.RateLimit),
	}

	// Top suspicious users
	userRows, err := r.conn.Query(ctx,
		"SELECT user_id, count() as count "+
			"FROM enforcement_events "+
			"WHERE guild_id = @guild_id AND action IN ('captcha', 'restrict') "+
			"AND timestamp >= @range_start "+
			"GROUP BY user_id ORDER BY count DESC LIMIT 10",
		baseArgs...,
	)
	if err != nil {
		return nil, fmt.Errorf("GetAnalytics top_users: %w", err)
	}
	defer func() { _ = userRows.Close() }()
	for userRows.Next() {
		var uid string
		var count uint64
		if err := userRows.Scan(&uid, &count); err != nil {
			return nil, fmt.Errorf("GetAnalytics top_users scan: %w", err)
		}
		result.TopSuspiciousUsers = append(result.TopSuspiciousUsers, UserCount{
			UserID: uid, Count: int(count),
		})
	}

	// Ensure slices are non-nil for JSON serialization
	if result.ActionBreakdown == nil {
		result.ActionBreakdown = []ActionCount{}
	}
	if result.RestrictionsOverTime == nil {
		result.RestrictionsOverTime = []TimeSeriesBucket{}
	}
	if result.TopSuspiciousUsers == nil {
		result.TopSuspiciousUsers = []UserCount{}
	}

	return result, nil
}
