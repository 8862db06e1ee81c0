package storage

import "time"

// EventWriter is the interface for writing enforcement events.
// Write() must NEVER block the caller.
type EventWriter interface {
	Write(event *EnforcementEvent)
	Close()
}

// EnforcementEvent is one enforcement decision to be persisted for analytics.
type EnforcementEvent struct {
	EventID             string
	UserID              string
	GuildID             string
	Timestamp           time.Time
	TotalScore          uint8
	TimingScore         uint8
	BehavioralScore     uint8
	SocialScore         uint8
	AccountScore        uint8
	RateLimitScore      uint8
	TrustScore          uint16
	Action              string
	CaptchaType         string
	RateLimitMultiplier float32
	RestrictDurationMs  uint32
	Recommendation      string
	Source              string // "decision" or "suspicion"
}
