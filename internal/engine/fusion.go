package engine

import "math"

// Weights holds the fusion weight of each suspicion axis. They sum to 1.
type Weights struct {
	Timing     float64
	Behavioral float64
	RateLimit  float64
	Social     float64
	Account    float64
}

// DefaultWeights returns the fixed production weights.
func DefaultWeights() Weights {
	return Weights{
		Timing:     0.25,
		Behavioral: 0.25,
		RateLimit:  0.20,
		Social:     0.15,
		Account:    0.15,
	}
}

// SuspicionInputs are the five independently sourced component scores.
// Callers must resolve a missing signal to a definite 0; there is no
// "unknown" value.
type SuspicionInputs struct {
	Timing     int
	Behavioral int
	Social     int
	Account    int
	RateLimit  int
}

// SuspicionScoreBreakdown keeps every clamped component next to the total
// so a moderator can see why a user scored the way they did.
type SuspicionScoreBreakdown struct {
	TotalScore      int
	TimingScore     int
	BehavioralScore int
	SocialScore     int
	AccountScore    int
	RateLimitScore  int
}

// ComputeSuspicion fuses the component scores with DefaultWeights.
func ComputeSuspicion(in SuspicionInputs) SuspicionScoreBreakdown {
	return ComputeSuspicionWeighted(in, DefaultWeights())
}

// ComputeSuspicionWeighted clamps each component to [0,100] and returns the
// rounded weighted sum, itself clamped to [0,100].
func ComputeSuspicionWeighted(in SuspicionInputs, w Weights) SuspicionScoreBreakdown {
	b := SuspicionScoreBreakdown{
		TimingScore:     ClampScore(in.Timing),
		BehavioralScore: ClampScore(in.Behavioral),
		SocialScore:     ClampScore(in.Social),
		AccountScore:    ClampScore(in.Account),
		RateLimitScore:  ClampScore(in.RateLimit),
	}

	total := w.Timing*float64(b.TimingScore) +
		w.Behavioral*float64(b.BehavioralScore) +
		w.RateLimit*float64(b.RateLimitScore) +
		w.Social*float64(b.SocialScore) +
		w.Account*float64(b.AccountScore)

	// Round at 1e-9 first so that sums like 86.99999999999999 land on 87.
	b.TotalScore = ClampScore(int(math.Round(math.Round(total*1e9) / 1e9)))
	return b
}

// Recommend gives the coarse reading of a total score:
// ≥85 ban, ≥70 challenge, ≥50 monitor, otherwise allow.
func Recommend(totalScore int) Recommendation {
	switch {
	case totalScore >= 85:
		return RecommendBan
	case totalScore >= 70:
		return RecommendChallenge
	case totalScore >= 50:
		return RecommendMonitor
	default:
		return RecommendAllow
	}
}

// ClampScore bounds a suspicion value to [0,100].
func ClampScore(v int) int {
	return max(0, min(100, v))
}
