package anticheat

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/triage-ai/warden/internal/engine"
)

// signalSet selects which signal sources a request needs.
type signalSet uint8

const (
	sigHistory signalSet = 1 << iota
	sigCommandCount
	sigViolations
	sigStats
	sigAccount
	sigTrust

	sigBehavioral = sigHistory | sigCommandCount | sigStats
	sigSuspicion  = sigHistory | sigCommandCount | sigViolations | sigStats | sigAccount
	sigDecision   = sigSuspicion | sigTrust
)

// Signal source names used in errors and the upstream failure metric.
const (
	sourceHistory    = "command_history"
	sourceViolations = "rate_limit_violations"
	sourceStats      = "user_stats"
	sourceAccount    = "account"
	sourceTrust      = "trust"

	sourceBehaviorMetrics = "behavior_metrics"
)

// signals is everything the scorers read for one user.
type signals struct {
	events       []engine.CommandEvent // newest-first, at most HistoryLimit
	commandCount int
	violations   int
	stats        engine.UserStats
	account      engine.Account
	trust        *engine.TrustScore
}

// collect reads the requested signal sources in parallel. The first failure
// cancels the remaining reads and is returned wrapped in
// ErrUpstreamUnavailable.
func (s *Service) collect(ctx context.Context, userID, guildID string, want signalSet, now time.Time) (*signals, error) {
	var out signals
	g, gctx := errgroup.WithContext(ctx)

	if want&sigHistory != 0 {
		g.Go(func() error {
			events, err := s.history.RecentCommandEvents(gctx, userID, engine.HistoryLimit)
			if err != nil {
				return s.upstream(gctx, sourceHistory, err)
			}
			out.events = events
			return nil
		})
	}
	if want&sigCommandCount != 0 {
		g.Go(func() error {
			n, err := s.history.CountCommandEvents(gctx, userID)
			if err != nil {
				return s.upstream(gctx, sourceHistory, err)
			}
			out.commandCount = n
			return nil
		})
	}
	if want&sigViolations != 0 {
		g.Go(func() error {
			n, err := s.violations.CountViolationsSince(gctx, userID, now.Add(-24*time.Hour))
			if err != nil {
				return s.upstream(gctx, sourceViolations, err)
			}
			out.violations = n
			return nil
		})
	}
	if want&sigStats != 0 {
		g.Go(func() error {
			st, err := s.stats.GetUserStats(gctx, userID)
			if err != nil {
				return s.upstream(gctx, sourceStats, err)
			}
			out.stats = st
			return nil
		})
	}
	if want&sigAccount != 0 {
		g.Go(func() error {
			acct, err := s.accounts.GetAccount(gctx, userID)
			if err != nil {
				return s.upstream(gctx, sourceAccount, err)
			}
			out.account = acct
			return nil
		})
	}
	if want&sigTrust != 0 {
		g.Go(func() error {
			ts, err := s.ledger.store.GetOrInitTrust(gctx, userID, guildID)
			if err != nil {
				return s.upstream(gctx, sourceTrust, err)
			}
			ts.Score = engine.ClampTrust(ts.Score)
			out.trust = ts
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &out, nil
}

// upstream records a failed read. Reads cancelled because a sibling failed
// first are not counted.
func (s *Service) upstream(ctx context.Context, source string, err error) error {
	if ctx.Err() == nil {
		s.m.UpstreamFailures.WithLabelValues(source).Inc()
	}
	return upstreamError(source, err)
}
