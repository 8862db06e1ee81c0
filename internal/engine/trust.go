package engine

import "time"

// Trust score bounds.
const (
	DefaultTrustScore = 500
	MinTrustScore     = 0
	MaxTrustScore     = 1000

	// MaxTrustDelta bounds a single signed adjustment.
	MaxTrustDelta = 1000
)

// TrustScore is the reputation of a user within one guild.
type TrustScore struct {
	UserID    string
	GuildID   string
	Score     int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TrustChange is the result of applying one delta.
type TrustChange struct {
	OldScore int
	NewScore int
}

// TrustScoreChange is one entry of the append-only trust history.
type TrustScoreChange struct {
	ID        int64
	UserID    string
	GuildID   string
	Delta     int
	OldScore  int
	NewScore  int
	Reason    string
	CreatedAt time.Time
}

// ClampTrust bounds a trust value to [0,1000].
func ClampTrust(v int) int {
	return max(MinTrustScore, min(MaxTrustScore, v))
}

// ApplyTrustDelta returns the clamped result of adding delta to score.
func ApplyTrustDelta(score, delta int) TrustChange {
	return TrustChange{OldScore: score, NewScore: ClampTrust(score + delta)}
}
