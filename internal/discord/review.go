package discord

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/triage-ai/warden/internal/engine"
)

// MessageSender is the subset of *discordgo.Session used to post messages.
type MessageSender interface {
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// ReviewNotifier posts restriction notices to a moderator review channel.
type ReviewNotifier struct {
	sender    MessageSender
	channelID string
	logger    *zap.Logger
}

// NewReviewNotifier creates a ReviewNotifier posting to channelID.
func NewReviewNotifier(sender MessageSender, channelID string, logger *zap.Logger) *ReviewNotifier {
	return &ReviewNotifier{sender: sender, channelID: channelID, logger: logger}
}

// NotifyRestriction posts a plain-text review request for a restricted user.
func (n *ReviewNotifier) NotifyRestriction(ctx context.Context, notice engine.ReviewNotice) error {
	if n.channelID == "" {
		return nil
	}
	if _, err := n.sender.ChannelMessageSend(n.channelID, FormatNotice(notice), discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("NotifyRestriction: %w", err)
	}
	n.logger.Info("review notice sent",
		zap.String("user_id", notice.UserID),
		zap.String("guild_id", notice.GuildID),
	)
	return nil
}

// FormatNotice renders the moderator-facing text of a notice.
func FormatNotice(n engine.ReviewNotice) string {
	b := n.Breakdown
	var sb strings.Builder
	fmt.Fprintf(&sb, "Anti-cheat restriction: <@%s> (`%s`) in guild `%s`\n", n.UserID, n.UserID, n.GuildID)
	fmt.Fprintf(&sb, "Suspicion %d/100 (timing %d, behavioral %d, social %d, account %d, rate limit %d)\n",
		b.TotalScore, b.TimingScore, b.BehavioralScore, b.SocialScore, b.AccountScore, b.RateLimitScore)
	fmt.Fprintf(&sb, "Trust %d/1000. Restricted for %s.\n", n.TrustScore,
		time.Duration(n.Action.RestrictDurationMs)*time.Millisecond)
	fmt.Fprintf(&sb, "Decided <t:%d:F>. Please review.", n.DecidedAt.Unix())
	return sb.String()
}
