package engine

// Behavioral score bonuses layered on top of the session score.
const (
	repetitiveSequenceBonus = 30
	lowSocialBonus          = 25
	lowSocialRatio          = 0.1

	violationWeight = 15
)

// SocialRatio returns the fraction of a user's activity that is commands
// rather than chat messages. ok is false when there is no activity at all.
func SocialRatio(messageCount, commandCount int) (ratio float64, ok bool) {
	total := messageCount + commandCount
	if total <= 0 {
		return 0, false
	}
	return float64(commandCount) / float64(total), true
}

// CalculateSocialSignal scores how little a user talks compared to how much
// they run commands. No activity at all is treated as maximally suspicious.
func CalculateSocialSignal(messageCount, commandCount int) int {
	r, ok := SocialRatio(messageCount, commandCount)
	if !ok {
		return 100
	}
	switch {
	case r > 0.9:
		return 100
	case r > 0.7:
		return 60
	case r > 0.5:
		return 30
	default:
		return 0
	}
}

// CalculateAccountFactor scores account freshness and profile completeness.
func CalculateAccountFactor(accountAgeDays float64, hasAvatar bool, messageCount int) int {
	score := 0
	switch {
	case accountAgeDays < 7:
		score += 50
	case accountAgeDays < 30:
		score += 25
	case accountAgeDays < 90:
		score += 10
	}
	if !hasAvatar {
		score += 20
	}
	switch {
	case messageCount == 0:
		score += 30
	case messageCount < 10:
		score += 15
	}
	return ClampScore(score)
}

// RateLimitScore converts a 24h rate-limit violation count into a score.
func RateLimitScore(violationsLast24h int) int {
	if violationsLast24h <= 0 {
		return 0
	}
	return min(100, violationsLast24h*violationWeight)
}

// ChatRatio is the complement of SocialRatio: the fraction of activity that
// is chat. ok is false when there is no activity at all.
func ChatRatio(messageCount, commandCount int) (ratio float64, ok bool) {
	r, ok := SocialRatio(messageCount, commandCount)
	if !ok {
		return 0, false
	}
	return 1 - r, true
}

// BehavioralScore combines session rhythm, command repetition and how little
// the user chats into the behavioral axis. The sum is left unclamped;
// ComputeSuspicion clamps it.
func BehavioralScore(session SessionResult, sequence SequenceResult, messageCount, commandCount int) int {
	score := session.SuspicionScore
	if sequence.IsSuspicious {
		score += repetitiveSequenceBonus
	}
	if r, ok := ChatRatio(messageCount, commandCount); ok && r < lowSocialRatio {
		score += lowSocialBonus
	}
	return score
}
