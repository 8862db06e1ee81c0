package engine

import "time"

// Minimum history sizes below which an analysis reports insufficient data
// instead of a verdict.
const (
	MinTimingEvents     = 30
	MinBehavioralEvents = 5
	MinSequenceCommands = 3

	// HistoryLimit is how many recent command events feed an analysis.
	HistoryLimit = 50
)

// ReasonInsufficientData is the reason string attached to neutral results
// produced from too little history. It means "unknown", not "clean".
const ReasonInsufficientData = "insufficient data"

// ReasonZeroMeanInterval marks a timing result whose commands all share one
// timestamp, leaving the coefficient of variation undefined.
const ReasonZeroMeanInterval = "zero mean interval: coefficient of variation undefined"

// Level is the timing-regularity classification of a user.
type Level int

const (
	LevelNone Level = iota
	LevelLow
	LevelMedium
	LevelHigh
	LevelExtreme
)

// String returns the lowercase level name.
func (l Level) String() string {
	switch l {
	case LevelLow:
		return "low"
	case LevelMedium:
		return "medium"
	case LevelHigh:
		return "high"
	case LevelExtreme:
		return "extreme"
	default:
		return "none"
	}
}

// Action is an enforcement decision.
type Action int

const (
	ActionNone Action = iota
	ActionMonitor
	ActionRateLimit
	ActionCaptcha
	ActionRestrict
)

// String returns the wire name of the action (also used for ClickHouse storage).
func (a Action) String() string {
	switch a {
	case ActionMonitor:
		return "monitor"
	case ActionRateLimit:
		return "rate_limit"
	case ActionCaptcha:
		return "captcha"
	case ActionRestrict:
		return "restrict"
	default:
		return "none"
	}
}

// CaptchaType selects the challenge presented to the user.
type CaptchaType int

const (
	CaptchaNone CaptchaType = iota
	CaptchaButton
	CaptchaImage
)

// String returns the lowercase captcha type, or "" when no captcha applies.
func (c CaptchaType) String() string {
	switch c {
	case CaptchaButton:
		return "button"
	case CaptchaImage:
		return "image"
	default:
		return ""
	}
}

// Recommendation is the coarse, presentation-facing reading of a suspicion
// score. It is intentionally independent of the Decider ladder.
type Recommendation string

const (
	RecommendAllow     Recommendation = "allow"
	RecommendMonitor   Recommendation = "monitor"
	RecommendChallenge Recommendation = "challenge"
	RecommendBan       Recommendation = "ban"
)

// CommandEvent is a single recorded execution of a rate-limited command.
type CommandEvent struct {
	ID             string
	UserID         string
	GuildID        string
	CommandName    string
	ExecutedAt     time.Time
	Success        bool
	ResponseTimeMs *int
	Metadata       map[string]any
}

// BehaviorMetrics is the advisory per-user timing summary persisted after
// each analysis. CVBasisPoints is the coefficient of variation in percent
// multiplied by 100 and rounded.
type BehaviorMetrics struct {
	UserID            string
	TotalCommands     int
	AvgIntervalSec    float64
	StdDevIntervalSec float64
	CVBasisPoints     int
	LastCommandAt     time.Time
	LastAnalysisAt    time.Time
}

// CVPct converts the stored basis-point value back into a percentage.
func (m BehaviorMetrics) CVPct() float64 {
	return float64(m.CVBasisPoints) / 100
}

// UserStats is the chat activity of a user, used for the social signal.
type UserStats struct {
	MessageCount int
}

// Account is the platform account profile of a user.
type Account struct {
	CreatedAt time.Time
	HasAvatar bool
}

// AgeDays returns the account age in fractional days at now.
func (a Account) AgeDays(now time.Time) float64 {
	return now.Sub(a.CreatedAt).Hours() / 24
}

// SuspicionRecord is the persisted audit copy of a suspicion breakdown.
type SuspicionRecord struct {
	ID              string
	UserID          string
	GuildID         string
	Breakdown       SuspicionScoreBreakdown
	Recommendation  Recommendation
	DetectedAt      time.Time
	Resolved        bool
	ResolutionNotes string
	ResolvedAt      *time.Time
}

// ReviewNotice asks moderators to review a user who was just restricted.
type ReviewNotice struct {
	UserID     string
	GuildID    string
	Breakdown  SuspicionScoreBreakdown
	TrustScore int
	Action     EnforcementAction
	DecidedAt  time.Time
}
