package engine

import (
	"math"
	"time"
)

// CV thresholds (percent) for the timing classification ladder.
const (
	cvExtreme = 0.5
	cvHigh    = 1.0
	cvMedium  = 2.0
	cvLow     = 5.0
)

// Cooldown snipe detection parameters.
const (
	SnipeToleranceSec = 5.0
	SnipeRateLimit    = 0.7
)

// TimingResult is the outcome of analyzing an interval series.
type TimingResult struct {
	Mean         float64 // seconds
	StdDev       float64 // seconds, population
	CVPct        float64
	IsSuspicious bool
	Level        Level
	Reason       string
	Sufficient   bool // false when the result carries no verdict
}

// SnipeResult is the outcome of cooldown snipe detection.
type SnipeResult struct {
	SnipeRate    float64
	IsSuspicious bool
}

// InsufficientTiming is the neutral result returned whenever there is not
// enough history to classify a user.
func InsufficientTiming() TimingResult {
	return TimingResult{Level: LevelNone, Reason: ReasonInsufficientData}
}

// AnalyzeTiming classifies an oldest-first series of inter-command intervals
// (seconds) by its coefficient of variation. Classification, first match wins:
//
//	cv < 0.5  → extreme (suspicious)
//	cv < 1    → high    (suspicious)
//	cv < 2    → medium  (suspicious)
//	cv < 5    → low     (monitor only)
//	otherwise → none
//
// A zero mean interval leaves the CV undefined; the result is level none
// with Sufficient false.
func AnalyzeTiming(intervals []float64) TimingResult {
	if len(intervals) < 2 {
		return InsufficientTiming()
	}

	m := mean(intervals)
	sd := populationStdDev(intervals, m)
	if m <= 0 {
		// CV is undefined; report it as zero with no verdict.
		return TimingResult{Mean: m, StdDev: sd, Level: LevelNone, Reason: ReasonZeroMeanInterval}
	}
	cv := sd / m * 100

	r := TimingResult{Mean: m, StdDev: sd, CVPct: cv, Sufficient: true}
	switch {
	case cv < cvExtreme:
		r.Level, r.IsSuspicious, r.Reason = LevelExtreme, true, "likely automated: near-identical command intervals"
	case cv < cvHigh:
		r.Level, r.IsSuspicious, r.Reason = LevelHigh, true, "highly regular command intervals"
	case cv < cvMedium:
		r.Level, r.IsSuspicious, r.Reason = LevelMedium, true, "regular command intervals"
	case cv < cvLow:
		r.Level, r.Reason = LevelLow, "slightly regular command intervals, monitoring"
	default:
		r.Level, r.Reason = LevelNone, "natural timing variation"
	}
	return r
}

// CheckSnipe reports how often a user fires a command within
// SnipeToleranceSec of its cooldown expiring.
func CheckSnipe(intervals []float64, expectedCooldownSec float64) SnipeResult {
	if len(intervals) == 0 {
		return SnipeResult{}
	}
	hits := 0
	for _, iv := range intervals {
		if math.Abs(iv-expectedCooldownSec) <= SnipeToleranceSec {
			hits++
		}
	}
	rate := float64(hits) / float64(len(intervals))
	return SnipeResult{SnipeRate: rate, IsSuspicious: rate > SnipeRateLimit}
}

// TimingScore maps a timing result onto the 0–100 suspicion axis used by
// the fusion step. This is the only place the mapping lives:
//
//	cv < 0.5 → 100, cv < 2 → 50, otherwise 0; no verdict → 0.
func TimingScore(r TimingResult) int {
	if !r.Sufficient {
		return 0
	}
	switch {
	case r.CVPct < cvExtreme:
		return 100
	case r.CVPct < cvMedium:
		return 50
	default:
		return 0
	}
}

// IntervalSeries returns the gaps in seconds between consecutive timestamps.
// times must be ordered oldest-first.
func IntervalSeries(times []time.Time) []float64 {
	if len(times) < 2 {
		return nil
	}
	out := make([]float64, 0, len(times)-1)
	for i := 1; i < len(times); i++ {
		out = append(out, times[i].Sub(times[i-1]).Seconds())
	}
	return out
}

// OldestFirst returns the execution times of newest-first events reversed
// into chronological order.
func OldestFirst(events []CommandEvent) []time.Time {
	out := make([]time.Time, len(events))
	for i, e := range events {
		out[len(events)-1-i] = e.ExecutedAt
	}
	return out
}

// NewBehaviorMetrics builds the persisted summary for an analysis.
func NewBehaviorMetrics(userID string, totalCommands int, lastCommandAt, analyzedAt time.Time, r TimingResult) BehaviorMetrics {
	return BehaviorMetrics{
		UserID:            userID,
		TotalCommands:     totalCommands,
		AvgIntervalSec:    r.Mean,
		StdDevIntervalSec: r.StdDev,
		CVBasisPoints:     int(math.Round(r.CVPct * 100)),
		LastCommandAt:     lastCommandAt,
		LastAnalysisAt:    analyzedAt,
	}
}

// -- helpers --

func mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

func populationStdDev(vals []float64, m float64) float64 {
	if len(vals) < 2 {
		return 0
	}
	sumSq := 0.0
	for _, v := range vals {
		d := v - m
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(vals)))
}
