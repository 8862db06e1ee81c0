package anticheat

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/triage-ai/warden/internal/engine"
	"github.com/triage-ai/warden/internal/metrics"
	"github.com/triage-ai/warden/internal/storage"
)

const notifyTimeout = 5 * time.Second

// Dependencies holds the collaborators of a Service. Notifier is optional.
type Dependencies struct {
	History    CommandHistoryStore
	Behavior   MetricsStore
	Violations RateLimitViolationStore
	Stats      UserStatsProvider
	Accounts   AccountProvider
	Trust      TrustStore
	Records    SuspicionRecordStore
	Events     storage.EventWriter
	Notifier   ReviewNotifier
	Decider    *engine.Decider
	Logger     *zap.Logger
	Metrics    *metrics.Metrics
}

// Config tunes a Service. Zero values fall back to defaults.
type Config struct {
	Analysis  AnalyzerConfig
	Cooldowns *engine.CooldownPolicy
	Weights   *engine.Weights
}

// Service is the anti-cheat core: it records command executions, analyzes
// timing in the background, scores suspicion and decides enforcement.
type Service struct {
	history    CommandHistoryStore
	behavior   MetricsStore
	violations RateLimitViolationStore
	stats      UserStatsProvider
	accounts   AccountProvider
	records    SuspicionRecordStore
	events     storage.EventWriter
	notifier   ReviewNotifier
	ledger     *Ledger
	decider    *engine.Decider
	analyzer   *Analyzer
	cooldowns  *engine.CooldownPolicy
	weights    engine.Weights
	logger     *zap.Logger
	m          *metrics.Metrics
	notifies   sync.WaitGroup
	now        func() time.Time
}

// NewService creates a Service and starts its background analysis workers.
func NewService(deps Dependencies, cfg Config) *Service {
	s := &Service{
		history:    deps.History,
		behavior:   deps.Behavior,
		violations: deps.Violations,
		stats:      deps.Stats,
		accounts:   deps.Accounts,
		records:    deps.Records,
		events:     deps.Events,
		notifier:   deps.Notifier,
		ledger:     NewLedger(deps.Trust),
		decider:    deps.Decider,
		cooldowns:  cfg.Cooldowns,
		weights:    engine.DefaultWeights(),
		logger:     deps.Logger,
		m:          deps.Metrics,
		now:        time.Now,
	}
	if cfg.Weights != nil {
		s.weights = *cfg.Weights
	}
	if s.decider == nil {
		s.decider = engine.NewDecider(nil)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.m == nil {
		s.m = metrics.New(prometheus.NewRegistry())
	}
	if s.events == nil {
		s.events = storage.NewLogWriter(s.logger)
	}
	s.analyzer = NewAnalyzer(s.refreshBehaviorMetrics, cfg.Analysis, s.logger, s.m)
	return s
}

// Close stops the analysis workers and waits for pending review notices.
func (s *Service) Close() {
	s.analyzer.Close()
	s.notifies.Wait()
}

// Ledger returns the trust ledger.
func (s *Service) Ledger() *Ledger { return s.ledger }

// --- Recording ---

// RecordCommandInput is one rate-limited command execution.
type RecordCommandInput struct {
	UserID         string         `json:"user_id" validate:"required,snowflake"`
	GuildID        string         `json:"guild_id" validate:"required,snowflake"`
	CommandName    string         `json:"command_name" validate:"required,max=64"`
	Success        bool           `json:"success"`
	ResponseTimeMs *int           `json:"response_time_ms" validate:"omitempty,min=0"`
	Metadata       map[string]any `json:"metadata"`
}

// RecordResult is returned once the event is durable.
type RecordResult struct {
	Recorded       bool
	EventID        string
	AnalysisQueued bool
}

// RecordCommandExecution appends a command event and schedules a background
// timing analysis. The analysis never delays or fails the call.
func (s *Service) RecordCommandExecution(ctx context.Context, in RecordCommandInput) (RecordResult, error) {
	in.CommandName = strings.ToLower(strings.TrimSpace(in.CommandName))
	if err := validateStruct(in); err != nil {
		return RecordResult{}, err
	}
	if err := validateMetadata(in.Metadata); err != nil {
		return RecordResult{}, err
	}

	id, err := s.history.InsertCommandEvent(ctx, engine.CommandEvent{
		ID:             uuid.NewString(),
		UserID:         in.UserID,
		GuildID:        in.GuildID,
		CommandName:    in.CommandName,
		ExecutedAt:     s.now().UTC(),
		Success:        in.Success,
		ResponseTimeMs: in.ResponseTimeMs,
		Metadata:       in.Metadata,
	})
	if err != nil {
		return RecordResult{}, s.upstream(ctx, sourceHistory, err)
	}
	s.m.CommandsRecorded.WithLabelValues(in.CommandName, strconv.FormatBool(in.Success)).Inc()

	return RecordResult{
		Recorded:       true,
		EventID:        id,
		AnalysisQueued: s.analyzer.Enqueue(in.UserID),
	}, nil
}

// refreshBehaviorMetrics is the background analysis task. Nothing is
// persisted once ctx is done.
func (s *Service) refreshBehaviorMetrics(ctx context.Context, userID string) (bool, error) {
	events, err := s.history.RecentCommandEvents(ctx, userID, engine.HistoryLimit)
	if err != nil {
		return false, fmt.Errorf("RecentCommandEvents: %w", err)
	}
	if len(events) < engine.MinTimingEvents {
		return false, nil
	}
	total, err := s.history.CountCommandEvents(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("CountCommandEvents: %w", err)
	}

	r := engine.AnalyzeTiming(engine.IntervalSeries(engine.OldestFirst(events)))
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m := engine.NewBehaviorMetrics(userID, total, events[0].ExecutedAt, s.now().UTC(), r)
	if err := s.behavior.UpsertBehaviorMetrics(ctx, m); err != nil {
		return false, fmt.Errorf("UpsertBehaviorMetrics: %w", err)
	}
	return true, nil
}

// --- Timing ---

// TimingReport is the on-demand timing analysis of a user.
type TimingReport struct {
	UserID     string
	EventCount int
	Timing     engine.TimingResult
	Score      int
	Snipes     []engine.CommandSnipe
	// Cached is the last background analysis, nil if none was stored or
	// it could not be read.
	Cached *engine.BehaviorMetrics
}

// AnalyzeTimingPatterns classifies the regularity of a user's recent
// commands. With fewer than 30 events the result carries no verdict.
func (s *Service) AnalyzeTimingPatterns(ctx context.Context, userID string) (*TimingReport, error) {
	if err := validateUser(userID); err != nil {
		return nil, err
	}
	events, err := s.history.RecentCommandEvents(ctx, userID, engine.HistoryLimit)
	if err != nil {
		return nil, s.upstream(ctx, sourceHistory, err)
	}
	rep := s.timingReport(userID, events)

	cached, err := s.behavior.GetBehaviorMetrics(ctx, userID)
	if err != nil {
		s.logger.Warn("cached behavior metrics unavailable",
			zap.String("user_id", userID),
			zap.Error(s.upstream(ctx, sourceBehaviorMetrics, err)),
		)
	} else {
		rep.Cached = cached
	}
	return rep, nil
}

func (s *Service) timingReport(userID string, events []engine.CommandEvent) *TimingReport {
	rep := &TimingReport{UserID: userID, EventCount: len(events)}
	if len(events) < engine.MinTimingEvents {
		rep.Timing = engine.InsufficientTiming()
		return rep
	}
	rep.Timing = engine.AnalyzeTiming(engine.IntervalSeries(engine.OldestFirst(events)))
	rep.Score = engine.TimingScore(rep.Timing)

	chronological := slices.Clone(events)
	slices.Reverse(chronological)
	rep.Snipes = engine.DetectSnipes(chronological, s.cooldowns)
	return rep
}

// --- Behavioral ---

// BehavioralReport is the session-rhythm and repetition analysis of a user.
type BehavioralReport struct {
	UserID       string
	GuildID      string
	Sufficient   bool
	Reason       string
	Score        int
	Session      engine.SessionResult
	Sequence     engine.SequenceResult
	MessageCount int
	CommandCount int
}

// CalculateBehavioralScore scores how machine-like a user's activity rhythm
// is. With fewer than 5 events the score is 0 and Sufficient is false.
func (s *Service) CalculateBehavioralScore(ctx context.Context, userID, guildID string) (*BehavioralReport, error) {
	if err := validateMember(userID, guildID); err != nil {
		return nil, err
	}
	sig, err := s.collect(ctx, userID, guildID, sigBehavioral, s.now())
	if err != nil {
		return nil, err
	}
	return behavioralReport(userID, guildID, sig), nil
}

func behavioralReport(userID, guildID string, sig *signals) *BehavioralReport {
	rep := &BehavioralReport{
		UserID:       userID,
		GuildID:      guildID,
		MessageCount: sig.stats.MessageCount,
		CommandCount: sig.commandCount,
	}
	if len(sig.events) < engine.MinBehavioralEvents {
		rep.Reason = engine.ReasonInsufficientData
		return rep
	}

	names := make([]string, len(sig.events))
	for i, e := range sig.events {
		names[len(sig.events)-1-i] = e.CommandName
	}

	rep.Sufficient = true
	rep.Session = engine.AnalyzeSessions(engine.OldestFirst(sig.events))
	rep.Sequence = engine.AnalyzeCommandSequences(names)
	rep.Score = engine.ClampScore(engine.BehavioralScore(rep.Session, rep.Sequence, rep.MessageCount, rep.CommandCount))
	return rep
}

// --- Suspicion ---

// SuspicionReport is a fused suspicion score with its inputs.
type SuspicionReport struct {
	UserID         string
	GuildID        string
	Breakdown      engine.SuspicionScoreBreakdown
	Recommendation engine.Recommendation
	Timing         engine.TimingResult
	Behavioral     *BehavioralReport
	RecordID       string // set when an audit record was written
}

// CalculateSuspicionScore fuses the five signals into a 0–100 score. Scores
// that warrant at least monitoring are persisted as audit records.
func (s *Service) CalculateSuspicionScore(ctx context.Context, userID, guildID string) (*SuspicionReport, error) {
	if err := validateMember(userID, guildID); err != nil {
		return nil, err
	}
	now := s.now()
	sig, err := s.collect(ctx, userID, guildID, sigSuspicion, now)
	if err != nil {
		return nil, err
	}

	rep := s.score(userID, guildID, sig, now)
	s.m.SuspicionScore.WithLabelValues(string(rep.Recommendation)).Observe(float64(rep.Breakdown.TotalScore))

	if rep.Recommendation != engine.RecommendAllow {
		rec := &engine.SuspicionRecord{
			UserID:         userID,
			GuildID:        guildID,
			Breakdown:      rep.Breakdown,
			Recommendation: rep.Recommendation,
			DetectedAt:     now.UTC(),
		}
		id, err := s.records.InsertSuspicionRecord(ctx, rec)
		if err != nil {
			s.m.UpstreamFailures.WithLabelValues("suspicion_records").Inc()
			s.logger.Warn("failed to persist suspicion record",
				zap.String("user_id", userID),
				zap.String("guild_id", guildID),
				zap.Error(err),
			)
		} else {
			rep.RecordID = id
		}
	}

	s.events.Write(newEnforcementEvent(userID, guildID, now, rep, nil, "suspicion"))
	return rep, nil
}

func (s *Service) score(userID, guildID string, sig *signals, now time.Time) *SuspicionReport {
	timing := s.timingReport(userID, sig.events)
	behavioral := behavioralReport(userID, guildID, sig)

	breakdown := engine.ComputeSuspicionWeighted(engine.SuspicionInputs{
		Timing:     timing.Score,
		Behavioral: behavioral.Score,
		Social:     engine.CalculateSocialSignal(sig.stats.MessageCount, sig.commandCount),
		Account:    engine.CalculateAccountFactor(sig.account.AgeDays(now), sig.account.HasAvatar, sig.stats.MessageCount),
		RateLimit:  engine.RateLimitScore(sig.violations),
	}, s.weights)

	return &SuspicionReport{
		UserID:         userID,
		GuildID:        guildID,
		Breakdown:      breakdown,
		Recommendation: engine.Recommend(breakdown.TotalScore),
		Timing:         timing.Timing,
		Behavioral:     behavioral,
	}
}

// --- Enforcement ---

// EnforcementReport is an enforcement decision with the scores behind it.
type EnforcementReport struct {
	UserID         string
	GuildID        string
	Action         engine.EnforcementAction
	Breakdown      engine.SuspicionScoreBreakdown
	Recommendation engine.Recommendation
	TrustScore     int
}

// GetEnforcementAction scores the user and picks an action given their
// trust score. A restriction also flags the user for moderator review.
func (s *Service) GetEnforcementAction(ctx context.Context, userID, guildID string) (*EnforcementReport, error) {
	if err := validateMember(userID, guildID); err != nil {
		return nil, err
	}
	now := s.now()
	sig, err := s.collect(ctx, userID, guildID, sigDecision, now)
	if err != nil {
		return nil, err
	}

	scored := s.score(userID, guildID, sig, now)
	action := s.decider.Decide(scored.Breakdown.TotalScore, sig.trust.Score)
	s.m.Decisions.WithLabelValues(action.Action.String()).Inc()

	rep := &EnforcementReport{
		UserID:         userID,
		GuildID:        guildID,
		Action:         action,
		Breakdown:      scored.Breakdown,
		Recommendation: scored.Recommendation,
		TrustScore:     sig.trust.Score,
	}
	s.events.Write(newEnforcementEvent(userID, guildID, now, scored, rep, "decision"))

	if action.Action != engine.ActionNone {
		s.logger.Info("enforcement decided",
			zap.String("user_id", userID),
			zap.String("guild_id", guildID),
			zap.String("action", action.Action.String()),
			zap.Int("suspicion", scored.Breakdown.TotalScore),
			zap.Int("trust", sig.trust.Score),
		)
	}
	if action.Action == engine.ActionRestrict {
		s.requestReview(engine.ReviewNotice{
			UserID:     userID,
			GuildID:    guildID,
			Breakdown:  scored.Breakdown,
			TrustScore: sig.trust.Score,
			Action:     action,
			DecidedAt:  now.UTC(),
		})
	}
	return rep, nil
}

// requestReview sends the review notice in the background.
func (s *Service) requestReview(notice engine.ReviewNotice) {
	if s.notifier == nil {
		return
	}
	s.notifies.Add(1)
	go func() {
		defer s.notifies.Done()
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := s.notifier.NotifyRestriction(ctx, notice); err != nil {
			s.logger.Warn("failed to send review notice",
				zap.String("user_id", notice.UserID),
				zap.String("guild_id", notice.GuildID),
				zap.Error(err),
			)
		}
	}()
}

// --- Trust ---

// UpdateTrustScore applies a signed delta to a user's trust score.
func (s *Service) UpdateTrustScore(ctx context.Context, in TrustDeltaInput) (engine.TrustChange, error) {
	change, err := s.ledger.ApplyDelta(ctx, in)
	if err != nil {
		return engine.TrustChange{}, err
	}
	s.m.TrustDeltas.WithLabelValues(metrics.Direction(in.Delta)).Inc()
	s.logger.Info("trust score updated",
		zap.String("user_id", in.UserID),
		zap.String("guild_id", in.GuildID),
		zap.Int("delta", in.Delta),
		zap.Int("old_score", change.OldScore),
		zap.Int("new_score", change.NewScore),
	)
	return change, nil
}

// GetTrustScore returns a user's trust score, initializing it if absent.
func (s *Service) GetTrustScore(ctx context.Context, userID, guildID string) (*engine.TrustScore, error) {
	return s.ledger.GetOrInit(ctx, userID, guildID)
}

// GetTrustHistory returns a user's most recent trust changes, newest first.
func (s *Service) GetTrustHistory(ctx context.Context, userID, guildID string, limit int) ([]engine.TrustScoreChange, error) {
	return s.ledger.History(ctx, userID, guildID, limit)
}

func newEnforcementEvent(userID, guildID string, at time.Time, scored *SuspicionReport, decided *EnforcementReport, source string) *storage.EnforcementEvent {
	b := scored.Breakdown
	ev := &storage.EnforcementEvent{
		EventID:         uuid.NewString(),
		UserID:          userID,
		GuildID:         guildID,
		Timestamp:       at.UTC(),
		TotalScore:      uint8(b.TotalScore),
		TimingScore:     uint8(b.TimingScore),
		BehavioralScore: uint8(b.BehavioralScore),
		SocialScore:     uint8(b.SocialScore),
		AccountScore:    uint8(b.AccountScore),
		RateLimitScore:  uint8(b.RateLimitScore),
		Action:          engine.ActionNone.String(),
		Recommendation:  string(scored.Recommendation),
		Source:          source,
	}
	if decided != nil {
		a := decided.Action
		ev.TrustScore = uint16(decided.TrustScore)
		ev.Action = a.Action.String()
		ev.CaptchaType = a.CaptchaType.String()
		ev.RateLimitMultiplier = float32(a.RateLimitMultiplier)
		ev.RestrictDurationMs = uint32(a.RestrictDurationMs)
	}
	return ev
}
