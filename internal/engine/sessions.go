package engine

import (
	"slices"
	"time"
)

// Session-pattern thresholds.
const (
	SessionBreakSec = 3600.0  // a gap longer than this ends a session
	SleepBreakSec   = 14400.0 // a gap longer than this looks like sleep

	noDailyBreaksPenalty = 25
	noSleepPenalty       = 20

	SequenceRepetitionLimit = 0.7
)

// SessionResult describes the activity rhythm of a user.
type SessionResult struct {
	SessionBreaks   int
	LongestBreakSec float64
	AvgActiveGapSec float64
	HasSleepPattern bool
	SuspicionScore  int // additive, unclamped; the fusion step clamps
	Reasons         []string
	Sufficient      bool
}

// SequenceResult describes how repetitive a user's command ordering is.
type SequenceResult struct {
	TopSequence    []string
	Frequency      int
	RepetitionRate float64
	IsSuspicious   bool
	Sufficient     bool
}

// AnalyzeSessions looks for the natural breaks a human leaves between
// bursts of activity. Gaps over an hour count as session breaks, shorter
// gaps are averaged into AvgActiveGapSec, and a gap over four hours is
// taken as a sleep pattern.
func AnalyzeSessions(timestamps []time.Time) SessionResult {
	if len(timestamps) < 2 {
		return SessionResult{Reasons: []string{ReasonInsufficientData}}
	}

	ts := slices.Clone(timestamps)
	slices.SortFunc(ts, func(a, b time.Time) int { return a.Compare(b) })

	var r SessionResult
	r.Sufficient = true

	activeSum, activeCount := 0.0, 0
	for i := 1; i < len(ts); i++ {
		gap := ts[i].Sub(ts[i-1]).Seconds()
		if gap > r.LongestBreakSec {
			r.LongestBreakSec = gap
		}
		switch {
		case gap > SessionBreakSec:
			r.SessionBreaks++
		case gap < SessionBreakSec:
			activeSum += gap
			activeCount++
		}
	}
	if activeCount > 0 {
		r.AvgActiveGapSec = activeSum / float64(activeCount)
	}
	r.HasSleepPattern = r.LongestBreakSec > SleepBreakSec

	if r.SessionBreaks < 2 {
		r.SuspicionScore += noDailyBreaksPenalty
		r.Reasons = append(r.Reasons, "no natural daily breaks")
	}
	if !r.HasSleepPattern {
		r.SuspicionScore += noSleepPenalty
		r.Reasons = append(r.Reasons, "no sleep pattern detected")
	}
	return r
}

// AnalyzeCommandSequences counts overlapping windows of three consecutive
// command names and reports how dominant the most common one is.
func AnalyzeCommandSequences(commands []string) SequenceResult {
	if len(commands) < MinSequenceCommands {
		return SequenceResult{}
	}

	windows := len(commands) - 2
	counts := make(map[[3]string]int, windows)
	var topKey [3]string
	top := 0
	for i := 0; i < windows; i++ {
		key := [3]string{commands[i], commands[i+1], commands[i+2]}
		counts[key]++
		if counts[key] > top {
			top = counts[key]
			topKey = key
		}
	}

	rate := float64(top) / float64(windows)
	return SequenceResult{
		TopSequence:    topKey[:],
		Frequency:      top,
		RepetitionRate: rate,
		IsSuspicious:   rate > SequenceRepetitionLimit,
		Sufficient:     true,
	}
}
