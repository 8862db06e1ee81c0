package anticheat

import (
	"context"
	"time"

	"github.com/triage-ai/warden/internal/engine"
)

// CommandHistoryStore appends and reads command executions.
// RecentCommandEvents returns events newest-first.
type CommandHistoryStore interface {
	InsertCommandEvent(ctx context.Context, e engine.CommandEvent) (string, error)
	RecentCommandEvents(ctx context.Context, userID string, limit int) ([]engine.CommandEvent, error)
	CountCommandEvents(ctx context.Context, userID string) (int, error)
}

// MetricsStore persists advisory BehaviorMetrics rows. GetBehaviorMetrics
// returns nil for a user that was never analyzed.
type MetricsStore interface {
	UpsertBehaviorMetrics(ctx context.Context, m engine.BehaviorMetrics) error
	GetBehaviorMetrics(ctx context.Context, userID string) (*engine.BehaviorMetrics, error)
}

// RateLimitViolationStore counts rate-limit violations recorded for a user.
type RateLimitViolationStore interface {
	CountViolationsSince(ctx context.Context, userID string, since time.Time) (int, error)
}

// UserStatsProvider returns a user's chat activity.
type UserStatsProvider interface {
	GetUserStats(ctx context.Context, userID string) (engine.UserStats, error)
}

// AccountProvider returns a user's platform account profile.
type AccountProvider interface {
	GetAccount(ctx context.Context, userID string) (engine.Account, error)
}

// TrustStore backs the trust ledger. ApplyTrustDelta must be an atomic
// read-modify-write per (user, guild).
type TrustStore interface {
	GetOrInitTrust(ctx context.Context, userID, guildID string) (*engine.TrustScore, error)
	ApplyTrustDelta(ctx context.Context, userID, guildID string, delta int, reason string) (engine.TrustChange, error)
	ListTrustChanges(ctx context.Context, userID, guildID string, limit int) ([]engine.TrustScoreChange, error)
}

// SuspicionRecordStore persists suspicion audit records.
type SuspicionRecordStore interface {
	InsertSuspicionRecord(ctx context.Context, r *engine.SuspicionRecord) (string, error)
}

// ReviewNotifier flags restricted users for manual moderator review.
type ReviewNotifier interface {
	NotifyRestriction(ctx context.Context, notice engine.ReviewNotice) error
}
