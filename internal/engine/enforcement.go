package engine

import (
	"math/rand/v2"
	"sync"
	"time"
)

// Enforcement ladder thresholds and parameters.
const (
	MonitorThreshold   = 30
	ChallengeThreshold = 50
	CaptchaThreshold   = 70
	RestrictThreshold  = 85

	HighTrustThreshold   = 700
	highTrustCaptchaOdds = 0.10
	defaultCaptchaOdds   = 0.20
	RateLimitMultiplier  = 0.7
	RestrictDurationMs   = int64(time.Hour / time.Millisecond)
)

// EnforcementAction is what the bot should do to a user right now.
// Optional fields are zero when they do not apply to the action.
type EnforcementAction struct {
	Action              Action
	RateLimitMultiplier float64
	CaptchaType         CaptchaType
	RestrictDurationMs  int64
	Message             string
}

// RandSource supplies uniform draws in [0,1).
type RandSource interface {
	Float64() float64
}

// lockedRand makes a *rand.Rand safe for concurrent use.
type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (l *lockedRand) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Float64()
}

// NewSeededSource returns a concurrency-safe source with a fixed seed.
func NewSeededSource(seed uint64) RandSource {
	return &lockedRand{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// globalSource draws from the runtime's auto-seeded generator.
type globalSource struct{}

func (globalSource) Float64() float64 { return rand.Float64() }

// Decider maps a suspicion score and trust score onto the enforcement ladder.
type Decider struct {
	rand RandSource
}

// NewDecider creates a Decider. A nil source uses the global generator.
func NewDecider(src RandSource) *Decider {
	if src == nil {
		src = globalSource{}
	}
	return &Decider{rand: src}
}

// Decide applies the ladder (inputs are already clamped upstream):
//
//	< 30 → none
//	< 50 → monitor
//	< 70 → captcha (button) with 10% odds if trust > 700, else 20%;
//	       otherwise rate_limit ×0.7
//	< 85 → captcha (image)
//	else → restrict for one hour
func (d *Decider) Decide(suspicionScore, trustScore int) EnforcementAction {
	switch {
	case suspicionScore < MonitorThreshold:
		return EnforcementAction{Action: ActionNone}
	case suspicionScore < ChallengeThreshold:
		return EnforcementAction{Action: ActionMonitor}
	case suspicionScore < CaptchaThreshold:
		chance := defaultCaptchaOdds
		if trustScore > HighTrustThreshold {
			chance = highTrustCaptchaOdds
		}
		if d.rand.Float64() < chance {
			return EnforcementAction{
				Action:      ActionCaptcha,
				CaptchaType: CaptchaButton,
				Message:     "Please confirm you're not a bot to continue.",
			}
		}
		return EnforcementAction{
			Action:              ActionRateLimit,
			RateLimitMultiplier: RateLimitMultiplier,
			Message:             "You're using commands quickly. Rewards are reduced for a while.",
		}
	case suspicionScore < RestrictThreshold:
		return EnforcementAction{
			Action:      ActionCaptcha,
			CaptchaType: CaptchaImage,
			Message:     "Unusual activity detected. Solve the captcha to continue.",
		}
	default:
		return EnforcementAction{
			Action:             ActionRestrict,
			RestrictDurationMs: RestrictDurationMs,
			Message:            "Your account is temporarily restricted pending moderator review.",
		}
	}
}
