package engine

import (
	"slices"
	"testing"
	"time"
)

var t0 = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

func hourly(n int) []time.Time {
	out := make([]time.Time, n)
	for i := range out {
		out[i] = t0.Add(time.Duration(i) * time.Hour)
	}
	return out
}

func TestAnalyzeSessions_HourlyBotHasNoSleep(t *testing.T) {
	r := AnalyzeSessions(hourly(48))
	if r.HasSleepPattern {
		t.Error("expected no sleep pattern")
	}
	if r.SuspicionScore < 20 {
		t.Errorf("suspicion score = %d, want >= 20", r.SuspicionScore)
	}
	if r.SessionBreaks != 0 {
		t.Errorf("gaps of exactly one hour are not breaks, got %d", r.SessionBreaks)
	}
	if !slices.Contains(r.Reasons, "no sleep pattern detected") {
		t.Errorf("missing sleep reason: %v", r.Reasons)
	}
}

func TestAnalyzeSessions_HumanRhythm(t *testing.T) {
	var ts []time.Time
	// Three days: a burst every minute for two hours, twice a day, with
	// an 8 hour night in between.
	for day := 0; day < 3; day++ {
		for _, startHour := range []int{9, 18} {
			start := t0.Add(time.Duration(day*24+startHour-8) * time.Hour)
			for m := 0; m < 120; m += 7 {
				ts = append(ts, start.Add(time.Duration(m)*time.Minute))
			}
		}
	}

	r := AnalyzeSessions(ts)
	if !r.HasSleepPattern {
		t.Errorf("expected sleep pattern, longest break %f", r.LongestBreakSec)
	}
	if r.SessionBreaks < 2 {
		t.Errorf("expected several session breaks, got %d", r.SessionBreaks)
	}
	if r.SuspicionScore != 0 {
		t.Errorf("suspicion score = %d, want 0 (reasons %v)", r.SuspicionScore, r.Reasons)
	}
	if r.AvgActiveGapSec != 420 {
		t.Errorf("avg active gap = %f, want 420", r.AvgActiveGapSec)
	}
}

func TestAnalyzeSessions_UnsortedInput(t *testing.T) {
	ts := []time.Time{t0.Add(20 * time.Hour), t0, t0.Add(2 * time.Hour)}
	r := AnalyzeSessions(ts)
	if r.LongestBreakSec != 18*3600 {
		t.Errorf("longest break = %f, want %d", r.LongestBreakSec, 18*3600)
	}
	if r.SessionBreaks != 2 {
		t.Errorf("breaks = %d, want 2", r.SessionBreaks)
	}
	if !ts[0].Equal(t0.Add(20 * time.Hour)) {
		t.Error("input slice must not be reordered")
	}
}

func TestAnalyzeSessions_Insufficient(t *testing.T) {
	r := AnalyzeSessions([]time.Time{t0})
	if r.Sufficient || r.SuspicionScore != 0 {
		t.Errorf("expected neutral result, got %+v", r)
	}
	if len(r.Reasons) != 1 || r.Reasons[0] != ReasonInsufficientData {
		t.Errorf("reasons = %v", r.Reasons)
	}
}

func TestAnalyzeCommandSequences_AllIdentical(t *testing.T) {
	cmds := make([]string, 90)
	for i := range cmds {
		cmds[i] = "work"
	}
	r := AnalyzeCommandSequences(cmds)
	if r.RepetitionRate != 1.0 {
		t.Errorf("repetition rate = %f, want 1.0", r.RepetitionRate)
	}
	if !r.IsSuspicious {
		t.Error("expected suspicious")
	}
	if !slices.Equal(r.TopSequence, []string{"work", "work", "work"}) {
		t.Errorf("top sequence = %v", r.TopSequence)
	}
	if r.Frequency != 88 {
		t.Errorf("frequency = %d, want 88", r.Frequency)
	}
}

func TestAnalyzeCommandSequences_Varied(t *testing.T) {
	cmds := []string{"work", "daily", "shop", "work", "beg", "crime", "work", "daily"}
	r := AnalyzeCommandSequences(cmds)
	if r.IsSuspicious {
		t.Errorf("varied commands flagged, rate %f", r.RepetitionRate)
	}
	if r.Frequency != 1 {
		t.Errorf("frequency = %d, want 1", r.Frequency)
	}
	if !slices.Equal(r.TopSequence, []string{"work", "daily", "shop"}) {
		t.Errorf("first triad reaching the top count should win, got %v", r.TopSequence)
	}
}

func TestAnalyzeCommandSequences_TooShort(t *testing.T) {
	for _, cmds := range [][]string{nil, {"work"}, {"work", "work"}} {
		r := AnalyzeCommandSequences(cmds)
		if r.IsSuspicious || r.Sufficient || r.RepetitionRate != 0 {
			t.Errorf("AnalyzeCommandSequences(%v) = %+v, want neutral", cmds, r)
		}
	}
}

func TestAnalyzeCommandSequences_CycleOfThree(t *testing.T) {
	var cmds []string
	for i := 0; i < 10; i++ {
		cmds = append(cmds, "work", "beg", "crime")
	}
	r := AnalyzeCommandSequences(cmds)
	// 28 windows rotate through three distinct triads.
	if r.IsSuspicious {
		t.Errorf("rotating triads split the count, got rate %f", r.RepetitionRate)
	}
}

func TestAnalyzeCommandSequences_NamesKeptIntact(t *testing.T) {
	r := AnalyzeCommandSequences([]string{"a\x00b", "c", "d"})
	want := []string{"a\x00b", "c", "d"}
	if !slices.Equal(r.TopSequence, want) {
		t.Errorf("TopSequence = %q, want %q", r.TopSequence, want)
	}
	if r.Frequency != 1 || r.RepetitionRate != 1 {
		t.Errorf("frequency = %d rate = %v, want 1 and 1", r.Frequency, r.RepetitionRate)
	}
}
