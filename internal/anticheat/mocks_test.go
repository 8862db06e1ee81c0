package anticheat

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/triage-ai/warden/internal/engine"
	"github.com/triage-ai/warden/internal/storage"
)

var errDown = errors.New("connection refused")

// memHistory keeps events per user in insertion (chronological) order.
type memHistory struct {
	mu        sync.Mutex
	events    map[string][]engine.CommandEvent
	insertErr error
	readErr   error
}

func newMemHistory() *memHistory {
	return &memHistory{events: make(map[string][]engine.CommandEvent)}
}

func (h *memHistory) InsertCommandEvent(_ context.Context, e engine.CommandEvent) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.insertErr != nil {
		return "", h.insertErr
	}
	h.events[e.UserID] = append(h.events[e.UserID], e)
	return e.ID, nil
}

func (h *memHistory) RecentCommandEvents(_ context.Context, userID string, limit int) ([]engine.CommandEvent, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.readErr != nil {
		return nil, h.readErr
	}
	all := h.events[userID]
	out := make([]engine.CommandEvent, 0, limit)
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, all[i])
	}
	return out, nil
}

func (h *memHistory) CountCommandEvents(_ context.Context, userID string) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.readErr != nil {
		return 0, h.readErr
	}
	return len(h.events[userID]), nil
}

// seed appends n events for userID spaced gap apart and ending at end.
func (h *memHistory) seed(userID, command string, n int, gap time.Duration, end time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	start := end.Add(-time.Duration(n-1) * gap)
	for i := 0; i < n; i++ {
		h.events[userID] = append(h.events[userID], engine.CommandEvent{
			UserID:      userID,
			GuildID:     testGuild,
			CommandName: command,
			ExecutedAt:  start.Add(time.Duration(i) * gap),
			Success:     true,
		})
	}
}

type memBehavior struct {
	mu      sync.Mutex
	rows    map[string]engine.BehaviorMetrics
	readErr error
}

func (b *memBehavior) GetBehaviorMetrics(_ context.Context, userID string) (*engine.BehaviorMetrics, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.readErr != nil {
		return nil, b.readErr
	}
	m, ok := b.rows[userID]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

func (b *memBehavior) UpsertBehaviorMetrics(_ context.Context, m engine.BehaviorMetrics) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.rows == nil {
		b.rows = make(map[string]engine.BehaviorMetrics)
	}
	b.rows[m.UserID] = m
	return nil
}

func (b *memBehavior) get(userID string) (engine.BehaviorMetrics, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	m, ok := b.rows[userID]
	return m, ok
}

type stubViolations struct {
	n   int
	err error
}

func (s *stubViolations) CountViolationsSince(context.Context, string, time.Time) (int, error) {
	return s.n, s.err
}

type stubStats struct {
	stats engine.UserStats
	err   error
}

func (s *stubStats) GetUserStats(context.Context, string) (engine.UserStats, error) {
	return s.stats, s.err
}

type stubAccounts struct {
	account engine.Account
	err     error
}

func (s *stubAccounts) GetAccount(context.Context, string) (engine.Account, error) {
	return s.account, s.err
}

// memTrust applies deltas under a mutex, matching the row lock of the
// Postgres store.
type memTrust struct {
	mu      sync.Mutex
	scores  map[string]int
	history []engine.TrustScoreChange
	err     error
}

func newMemTrust() *memTrust {
	return &memTrust{scores: make(map[string]int)}
}

func (t *memTrust) GetOrInitTrust(_ context.Context, userID, guildID string) (*engine.TrustScore, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.err != nil {
		return nil, t.err
	}
	key := userID + "/" + guildID
	if _, ok := t.scores[key]; !ok {
		t.scores[key] = engine.DefaultTrustScore
	}
	return &engine.TrustScore{UserID: userID, GuildID: guildID, Score: t.scores[key]}, nil
}

func (t *memTrust) ApplyTrustDelta(_ context.Context, userID, guildID string, delta int, reason string) (engine.TrustChange, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.err != nil {
		return engine.TrustChange{}, t.err
	}
	key := userID + "/" + guildID
	old, ok := t.scores[key]
	if !ok {
		old = engine.DefaultTrustScore
	}
	change := engine.ApplyTrustDelta(old, delta)
	t.scores[key] = change.NewScore
	t.history = append(t.history, engine.TrustScoreChange{
		ID:       int64(len(t.history) + 1),
		UserID:   userID,
		GuildID:  guildID,
		Delta:    delta,
		OldScore: change.OldScore,
		NewScore: change.NewScore,
		Reason:   reason,
	})
	return change, nil
}

func (t *memTrust) ListTrustChanges(_ context.Context, userID, guildID string, limit int) ([]engine.TrustScoreChange, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.err != nil {
		return nil, t.err
	}
	var out []engine.TrustScoreChange
	for i := len(t.history) - 1; i >= 0 && len(out) < limit; i-- {
		if c := t.history[i]; c.UserID == userID && c.GuildID == guildID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (t *memTrust) set(userID, guildID string, score int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.scores[userID+"/"+guildID] = score
}

type memRecords struct {
	mu      sync.Mutex
	records []*engine.SuspicionRecord
	err     error
}

func (r *memRecords) InsertSuspicionRecord(_ context.Context, rec *engine.SuspicionRecord) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return "", r.err
	}
	rec.ID = "rec-1"
	r.records = append(r.records, rec)
	return rec.ID, nil
}

type captureEvents struct {
	mu     sync.Mutex
	events []*storage.EnforcementEvent
}

func (c *captureEvents) Write(e *storage.EnforcementEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

func (c *captureEvents) Close() {}

type captureNotifier struct {
	mu      sync.Mutex
	notices []engine.ReviewNotice
}

func (n *captureNotifier) NotifyRestriction(_ context.Context, notice engine.ReviewNotice) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice)
	return nil
}
