package api

import (
	"time"

	"github.com/triage-ai/warden/internal/anticheat"
	"github.com/triage-ai/warden/internal/chread"
	"github.com/triage-ai/warden/internal/engine"
)

// --- POST /v1/commands ---

// RecordCommandReq is the JSON body for POST /v1/commands.
type RecordCommandReq struct {
	UserID         string         `json:"user_id"`
	GuildID        string         `json:"guild_id"`
	CommandName    string         `json:"command_name"`
	Success        bool           `json:"success"`
	ResponseTimeMs *int           `json:"response_time_ms,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// RecordCommandResp acknowledges a recorded command.
type RecordCommandResp struct {
	Recorded       bool   `json:"recorded"`
	EventID        string `json:"event_id"`
	AnalysisQueued bool   `json:"analysis_queued"`
}

// --- Timing ---

// SnipeResp is the cooldown snipe result for one command.
type SnipeResp struct {
	Command      string  `json:"command"`
	CooldownSec  float64 `json:"cooldown_sec"`
	Samples      int     `json:"samples"`
	SnipeRate    float64 `json:"snipe_rate"`
	IsSuspicious bool    `json:"is_suspicious"`
}

// TimingResp is the response for GET /v1/users/{user_id}/timing.
type TimingResp struct {
	UserID                  string             `json:"user_id"`
	EventCount              int                `json:"event_count"`
	Sufficient              bool               `json:"sufficient"`
	MeanIntervalSec         float64            `json:"mean_interval_sec"`
	StdDevIntervalSec       float64            `json:"stddev_interval_sec"`
	CoefficientVariationPct float64            `json:"coefficient_variation_pct"`
	IsSuspicious            bool               `json:"is_suspicious"`
	Level                   string             `json:"level"`
	Reason                  string             `json:"reason,omitempty"`
	TimingScore             int                `json:"timing_score"`
	Snipes                  []SnipeResp        `json:"snipes"`
	CachedMetrics           *CachedMetricsResp `json:"cached_metrics"`
}

// CachedMetricsResp is the last stored background analysis for a user.
type CachedMetricsResp struct {
	TotalCommands           int       `json:"total_commands"`
	AvgIntervalSec          float64   `json:"avg_interval_sec"`
	StdDevIntervalSec       float64   `json:"stddev_interval_sec"`
	CoefficientVariationPct float64   `json:"coefficient_variation_pct"`
	LastCommandAt           time.Time `json:"last_command_at"`
	LastAnalysisAt          time.Time `json:"last_analysis_at"`
}

func timingToResp(rep *anticheat.TimingReport) TimingResp {
	t := rep.Timing
	resp := TimingResp{
		UserID:                  rep.UserID,
		EventCount:              rep.EventCount,
		Sufficient:              t.Sufficient,
		MeanIntervalSec:         t.Mean,
		StdDevIntervalSec:       t.StdDev,
		CoefficientVariationPct: t.CVPct,
		IsSuspicious:            t.IsSuspicious,
		Level:                   t.Level.String(),
		Reason:                  t.Reason,
		TimingScore:             rep.Score,
		Snipes:                  make([]SnipeResp, 0, len(rep.Snipes)),
	}
	if c := rep.Cached; c != nil {
		resp.CachedMetrics = &CachedMetricsResp{
			TotalCommands:           c.TotalCommands,
			AvgIntervalSec:          c.AvgIntervalSec,
			StdDevIntervalSec:       c.StdDevIntervalSec,
			CoefficientVariationPct: c.CVPct(),
			LastCommandAt:           c.LastCommandAt,
			LastAnalysisAt:          c.LastAnalysisAt,
		}
	}
	for _, s := range rep.Snipes {
		resp.Snipes = append(resp.Snipes, SnipeResp{
			Command:      s.Command,
			CooldownSec:  s.CooldownSec,
			Samples:      s.Samples,
			SnipeRate:    s.SnipeRate,
			IsSuspicious: s.IsSuspicious,
		})
	}
	return resp
}

// --- Behavior ---

// SessionResp is the session-rhythm part of a behavioral result.
type SessionResp struct {
	SessionBreaks   int      `json:"session_breaks"`
	LongestBreakSec float64  `json:"longest_break_sec"`
	AvgActiveGapSec float64  `json:"avg_active_gap_sec"`
	HasSleepPattern bool     `json:"has_sleep_pattern"`
	SuspicionScore  int      `json:"suspicion_score"`
	Reasons         []string `json:"reasons"`
}

// SequenceResp is the command-repetition part of a behavioral result.
type SequenceResp struct {
	TopSequence    []string `json:"top_sequence"`
	Frequency      int      `json:"frequency"`
	RepetitionRate float64  `json:"repetition_rate"`
	IsSuspicious   bool     `json:"is_suspicious"`
}

// BehaviorResp is the response for GET .../behavior.
type BehaviorResp struct {
	UserID          string       `json:"user_id"`
	GuildID         string       `json:"guild_id"`
	Sufficient      bool         `json:"sufficient"`
	Reason          string       `json:"reason,omitempty"`
	BehavioralScore int          `json:"behavioral_score"`
	Session         SessionResp  `json:"session"`
	Sequence        SequenceResp `json:"sequence"`
	MessageCount    int          `json:"message_count"`
	CommandCount    int          `json:"command_count"`
}

func behaviorToResp(rep *anticheat.BehavioralReport) BehaviorResp {
	reasons := rep.Session.Reasons
	if reasons == nil {
		reasons = []string{}
	}
	top := rep.Sequence.TopSequence
	if top == nil {
		top = []string{}
	}
	return BehaviorResp{
		UserID:          rep.UserID,
		GuildID:         rep.GuildID,
		Sufficient:      rep.Sufficient,
		Reason:          rep.Reason,
		BehavioralScore: rep.Score,
		Session: SessionResp{
			SessionBreaks:   rep.Session.SessionBreaks,
			LongestBreakSec: rep.Session.LongestBreakSec,
			AvgActiveGapSec: rep.Session.AvgActiveGapSec,
			HasSleepPattern: rep.Session.HasSleepPattern,
			SuspicionScore:  rep.Session.SuspicionScore,
			Reasons:         reasons,
		},
		Sequence: SequenceResp{
			TopSequence:    top,
			Frequency:      rep.Sequence.Frequency,
			RepetitionRate: rep.Sequence.RepetitionRate,
			IsSuspicious:   rep.Sequence.IsSuspicious,
		},
		MessageCount: rep.MessageCount,
		CommandCount: rep.CommandCount,
	}
}

// --- Suspicion ---

// BreakdownResp is a suspicion score with its components.
type BreakdownResp struct {
	TotalScore      int `json:"total_score"`
	TimingScore     int `json:"timing_score"`
	BehavioralScore int `json:"behavioral_score"`
	SocialScore     int `json:"social_score"`
	AccountScore    int `json:"account_score"`
	RateLimitScore  int `json:"rate_limit_score"`
}

func breakdownToResp(b engine.SuspicionScoreBreakdown) BreakdownResp {
	return BreakdownResp{
		TotalScore:      b.TotalScore,
		TimingScore:     b.TimingScore,
		BehavioralScore: b.BehavioralScore,
		SocialScore:     b.SocialScore,
		AccountScore:    b.AccountScore,
		RateLimitScore:  b.RateLimitScore,
	}
}

// SuspicionResp is the response for GET .../suspicion.
type SuspicionResp struct {
	UserID  string `json:"user_id"`
	GuildID string `json:"guild_id"`
	BreakdownResp
	Recommendation string `json:"recommendation"`
	RecordID       string `json:"record_id,omitempty"`
}

// --- Enforcement ---

// EnforcementResp is the response for GET .../enforcement.
type EnforcementResp struct {
	UserID              string        `json:"user_id"`
	GuildID             string        `json:"guild_id"`
	Action              string        `json:"action"`
	RateLimitMultiplier *float64      `json:"rate_limit_multiplier,omitempty"`
	CaptchaType         *string       `json:"captcha_type,omitempty"`
	RestrictDurationMs  *int64        `json:"restrict_duration_ms,omitempty"`
	Message             string        `json:"message,omitempty"`
	Suspicion           BreakdownResp `json:"suspicion"`
	Recommendation      string        `json:"recommendation"`
	TrustScore          int           `json:"trust_score"`
}

func enforcementToResp(rep *anticheat.EnforcementReport) EnforcementResp {
	a := rep.Action
	resp := EnforcementResp{
		UserID:         rep.UserID,
		GuildID:        rep.GuildID,
		Action:         a.Action.String(),
		Message:        a.Message,
		Suspicion:      breakdownToResp(rep.Breakdown),
		Recommendation: string(rep.Recommendation),
		TrustScore:     rep.TrustScore,
	}
	switch a.Action {
	case engine.ActionRateLimit:
		m := a.RateLimitMultiplier
		resp.RateLimitMultiplier = &m
	case engine.ActionCaptcha:
		c := a.CaptchaType.String()
		resp.CaptchaType = &c
	case engine.ActionRestrict:
		d := a.RestrictDurationMs
		resp.RestrictDurationMs = &d
	}
	return resp
}

// --- Trust ---

// UpdateTrustReq is the JSON body for POST .../trust.
type UpdateTrustReq struct {
	Delta  *int   `json:"delta"`
	Reason string `json:"reason"`
}

// TrustChangeResp is the response for POST .../trust.
type TrustChangeResp struct {
	OldScore int `json:"old_score"`
	NewScore int `json:"new_score"`
}

// TrustScoreResp is the response for GET .../trust.
type TrustScoreResp struct {
	UserID    string    `json:"user_id"`
	GuildID   string    `json:"guild_id"`
	Score     int       `json:"score"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TrustChangeEntryResp is one trust history entry.
type TrustChangeEntryResp struct {
	ID        int64     `json:"id"`
	Delta     int       `json:"delta"`
	OldScore  int       `json:"old_score"`
	NewScore  int       `json:"new_score"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

// TrustHistoryResp is the response for GET .../trust/history.
type TrustHistoryResp struct {
	UserID  string                 `json:"user_id"`
	GuildID string                 `json:"guild_id"`
	Changes []TrustChangeEntryResp `json:"changes"`
}

// --- Detections ---

// DetectionResp is one persisted suspicion record.
type DetectionResp struct {
	ID      string `json:"id"`
	UserID  string `json:"user_id"`
	GuildID string `json:"guild_id"`
	BreakdownResp
	Recommendation  string     `json:"recommendation"`
	DetectedAt      time.Time  `json:"detected_at"`
	Resolved        bool       `json:"resolved"`
	ResolutionNotes *string    `json:"resolution_notes"`
	ResolvedAt      *time.Time `json:"resolved_at"`
}

func detectionToResp(r *engine.SuspicionRecord) DetectionResp {
	var notes *string
	if r.ResolutionNotes != "" {
		notes = &r.ResolutionNotes
	}
	return DetectionResp{
		ID:              r.ID,
		UserID:          r.UserID,
		GuildID:         r.GuildID,
		BreakdownResp:   breakdownToResp(r.Breakdown),
		Recommendation:  string(r.Recommendation),
		DetectedAt:      r.DetectedAt,
		Resolved:        r.Resolved,
		ResolutionNotes: notes,
		ResolvedAt:      r.ResolvedAt,
	}
}

// DetectionListResp is a page of suspicion records.
type DetectionListResp struct {
	Detections []DetectionResp `json:"detections"`
	Total      int             `json:"total"`
	Page       int             `json:"page"`
	PageSize   int             `json:"page_size"`
}

// ResolveDetectionReq is the JSON body for POST /api/warden/detections/{id}/resolve.
type ResolveDetectionReq struct {
	Notes string `json:"notes"`
}

// --- Decisions ---

// DecisionListResp is a page of enforcement events.
type DecisionListResp struct {
	Decisions []chread.DecisionRow `json:"decisions"`
	Total     int                  `json:"total"`
	Page      int                  `json:"page"`
	PageSize  int                  `json:"page_size"`
}

// --- API clients ---

// CreateClientReq is the JSON body for POST /api/warden/clients.
type CreateClientReq struct {
	Name string `json:"name"`
}

// ClientResp describes an API client (no plaintext key).
type ClientResp struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	APIKeyPrefix string    `json:"api_key_prefix"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// CreateClientResp includes the plaintext API key (shown once).
type CreateClientResp struct {
	ClientResp
	APIKey string `json:"api_key"`
}

// RotateKeyResp includes the new plaintext API key (shown once).
type RotateKeyResp struct {
	APIKey       string `json:"api_key"`
	APIKeyPrefix string `json:"api_key_prefix"`
}

// ErrorResp is a standard error response body.
type ErrorResp struct {
	Detail string `json:"detail"`
}
