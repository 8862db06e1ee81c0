package anticheat

import (
	"context"
	"fmt"
	"strings"

	"github.com/triage-ai/warden/internal/engine"
)

// TrustDeltaInput is one signed adjustment of a user's trust score.
type TrustDeltaInput struct {
	UserID  string `json:"user_id" validate:"required,snowflake"`
	GuildID string `json:"guild_id" validate:"required,snowflake"`
	Delta   int    `json:"delta" validate:"min=-1000,max=1000"`
	Reason  string `json:"reason" validate:"required,max=500"`
}

// Ledger is the per-(user, guild) trust score ledger. Scores only change
// through ApplyDelta and always stay within [0,1000].
type Ledger struct {
	store TrustStore
}

// NewLedger creates a Ledger over store.
func NewLedger(store TrustStore) *Ledger {
	return &Ledger{store: store}
}

// GetOrInit returns the trust score, creating it at 500 on first access.
func (l *Ledger) GetOrInit(ctx context.Context, userID, guildID string) (*engine.TrustScore, error) {
	if err := validateMember(userID, guildID); err != nil {
		return nil, err
	}
	ts, err := l.store.GetOrInitTrust(ctx, userID, guildID)
	if err != nil {
		return nil, upstreamError("trust", err)
	}
	ts.Score = engine.ClampTrust(ts.Score)
	return ts, nil
}

// Trust history page bounds.
const (
	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 100
)

// History returns the most recent trust changes, newest first. limit is
// clamped to [1, MaxHistoryLimit]; 0 selects DefaultHistoryLimit.
func (l *Ledger) History(ctx context.Context, userID, guildID string, limit int) ([]engine.TrustScoreChange, error) {
	if err := validateMember(userID, guildID); err != nil {
		return nil, err
	}
	if limit == 0 {
		limit = DefaultHistoryLimit
	}
	limit = max(1, min(MaxHistoryLimit, limit))
	changes, err := l.store.ListTrustChanges(ctx, userID, guildID, limit)
	if err != nil {
		return nil, upstreamError("trust", err)
	}
	return changes, nil
}

// ApplyDelta adds a signed delta to the trust score, clamping the result.
func (l *Ledger) ApplyDelta(ctx context.Context, in TrustDeltaInput) (engine.TrustChange, error) {
	in.Reason = strings.TrimSpace(in.Reason)
	if err := validateStruct(in); err != nil {
		return engine.TrustChange{}, err
	}
	if in.Delta < -engine.MaxTrustDelta || in.Delta > engine.MaxTrustDelta {
		return engine.TrustChange{}, fmt.Errorf("%w: delta out of range", ErrInvalidInput)
	}
	change, err := l.store.ApplyTrustDelta(ctx, in.UserID, in.GuildID, in.Delta, in.Reason)
	if err != nil {
		return engine.TrustChange{}, upstreamError("trust", err)
	}
	return change, nil
}
