package discord

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/triage-ai/warden/internal/cache"
	"github.com/triage-ai/warden/internal/engine"
	"github.com/triage-ai/warden/internal/metrics"
)

// UserFetcher is the subset of *discordgo.Session used to look up users.
type UserFetcher interface {
	User(userID string, options ...discordgo.RequestOption) (*discordgo.User, error)
}

// NewSession creates a REST-only Discord session for a bot token.
func NewSession(token string) (*discordgo.Session, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("NewSession: %w", err)
	}
	s.Client.Timeout = 5 * time.Second
	return s, nil
}

// AccountFromUser derives the account profile from a Discord user. The
// creation time is encoded in the user's snowflake ID.
func AccountFromUser(u *discordgo.User) (engine.Account, error) {
	created, err := discordgo.SnowflakeTimestamp(u.ID)
	if err != nil {
		return engine.Account{}, fmt.Errorf("AccountFromUser: %w", err)
	}
	return engine.Account{CreatedAt: created, HasAvatar: u.Avatar != ""}, nil
}

// AccountProvider looks up account profiles through the Discord REST API,
// behind a circuit breaker and a stale-while-revalidate cache.
type AccountProvider struct {
	users   UserFetcher
	breaker *gobreaker.CircuitBreaker[engine.Account]
	cache   *cache.SWR[engine.Account]
	logger  *zap.Logger
}

// NewAccountProvider creates an AccountProvider. ttl defaults to 10 minutes.
func NewAccountProvider(users UserFetcher, ttl time.Duration, logger *zap.Logger, m *metrics.Metrics) *AccountProvider {
	if ttl == 0 {
		ttl = 10 * time.Minute
	}
	return &AccountProvider{
		users:   users,
		breaker: newBreaker[engine.Account](logger, m),
		cache:   cache.NewSWR[engine.Account](ttl),
		logger:  logger,
	}
}

// GetAccount returns the account profile of a user.
func (p *AccountProvider) GetAccount(ctx context.Context, userID string) (engine.Account, error) {
	result := p.cache.Get(userID)
	if result.Hit {
		if result.NeedsRefresh {
			go p.backgroundRefresh(userID)
		}
		return result.Value, nil
	}

	acct, err := p.fetch(ctx, userID)
	if err != nil {
		return engine.Account{}, err
	}
	p.cache.Set(userID, acct)
	return acct, nil
}

func (p *AccountProvider) backgroundRefresh(userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	acct, err := p.fetch(ctx, userID)
	if err != nil {
		p.logger.Warn("account refresh failed",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		// Keep serving the stale profile for another TTL.
		p.cache.Set(userID, p.cache.Get(userID).Value)
		return
	}
	p.cache.Set(userID, acct)
}

func (p *AccountProvider) fetch(ctx context.Context, userID string) (engine.Account, error) {
	acct, err := p.breaker.Execute(func() (engine.Account, error) {
		u, err := p.users.User(userID, discordgo.WithContext(ctx))
		if err != nil {
			return engine.Account{}, err
		}
		return AccountFromUser(u)
	})
	if err != nil {
		return engine.Account{}, fmt.Errorf("AccountProvider.GetAccount: %w", err)
	}
	return acct, nil
}

// SnowflakeAccounts derives account age from the user ID alone. It is used
// when no bot token is configured; avatars are reported present so the
// account signal only reflects age.
type SnowflakeAccounts struct{}

func (SnowflakeAccounts) GetAccount(_ context.Context, userID string) (engine.Account, error) {
	created, err := discordgo.SnowflakeTimestamp(userID)
	if err != nil {
		return engine.Account{}, fmt.Errorf("SnowflakeAccounts.GetAccount: %w", err)
	}
	return engine.Account{CreatedAt: created, HasAvatar: true}, nil
}
