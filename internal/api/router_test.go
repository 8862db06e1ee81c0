package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/triage-ai/warden/internal/anticheat"
	"github.com/triage-ai/warden/internal/auth"
	"github.com/triage-ai/warden/internal/chread"
	"github.com/triage-ai/warden/internal/engine"
	"github.com/triage-ai/warden/internal/store"
)

const (
	testUser  = "123456789012345678"
	testGuild = "876543210987654321"
	botKey    = "Bearer wsk_testkey"
	adminKey  = "Bearer admin-secret"
)

// --- Mocks ---

type mockAuth struct {
	key string
	err error
}

func (m *mockAuth) Authenticate(_ context.Context, authorization string) (*auth.ClientContext, error) {
	if m.err != nil {
		return nil, m.err
	}
	if authorization == "" {
		return nil, auth.ErrMissingAPIKey
	}
	if authorization != m.key {
		return nil, auth.ErrInvalidAPIKey
	}
	return &auth.ClientContext{ClientID: "client-1", Name: "economy-bot"}, nil
}

type mockService struct {
	recorded     *anticheat.RecordCommandInput
	trustIn      *anticheat.TrustDeltaInput
	err          error
	action       engine.EnforcementAction
	breakdown    engine.SuspicionScoreBreakdown
	cached       *engine.BehaviorMetrics
	history      []engine.TrustScoreChange
	historyLimit int
}

func (m *mockService) RecordCommandExecution(_ context.Context, in anticheat.RecordCommandInput) (anticheat.RecordResult, error) {
	m.recorded = &in
	if m.err != nil {
		return anticheat.RecordResult{}, m.err
	}
	return anticheat.RecordResult{Recorded: true, EventID: "evt-1", AnalysisQueued: true}, nil
}

func (m *mockService) AnalyzeTimingPatterns(_ context.Context, userID string) (*anticheat.TimingReport, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &anticheat.TimingReport{UserID: userID, EventCount: 12, Timing: engine.InsufficientTiming(), Cached: m.cached}, nil
}

func (m *mockService) CalculateBehavioralScore(_ context.Context, userID, guildID string) (*anticheat.BehavioralReport, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &anticheat.BehavioralReport{UserID: userID, GuildID: guildID, Reason: engine.ReasonInsufficientData}, nil
}

func (m *mockService) CalculateSuspicionScore(_ context.Context, userID, guildID string) (*anticheat.SuspicionReport, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &anticheat.SuspicionReport{
		UserID:         userID,
		GuildID:        guildID,
		Breakdown:      m.breakdown,
		Recommendation: engine.Recommend(m.breakdown.TotalScore),
	}, nil
}

func (m *mockService) GetEnforcementAction(_ context.Context, userID, guildID string) (*anticheat.EnforcementReport, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &anticheat.EnforcementReport{
		UserID:         userID,
		GuildID:        guildID,
		Action:         m.action,
		Breakdown:      m.breakdown,
		Recommendation: engine.Recommend(m.breakdown.TotalScore),
		TrustScore:     500,
	}, nil
}

func (m *mockService) UpdateTrustScore(_ context.Context, in anticheat.TrustDeltaInput) (engine.TrustChange, error) {
	m.trustIn = &in
	if m.err != nil {
		return engine.TrustChange{}, m.err
	}
	return engine.ApplyTrustDelta(990, in.Delta), nil
}

func (m *mockService) GetTrustScore(_ context.Context, userID, guildID string) (*engine.TrustScore, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &engine.TrustScore{UserID: userID, GuildID: guildID, Score: 500}, nil
}

func (m *mockService) GetTrustHistory(_ context.Context, _, _ string, limit int) ([]engine.TrustScoreChange, error) {
	m.historyLimit = limit
	if m.err != nil {
		return nil, m.err
	}
	return m.history, nil
}

type mockDetections struct {
	params   store.ListSuspicionParams
	resolved *engine.SuspicionRecord
}

func (m *mockDetections) ListSuspicionRecords(_ context.Context, p store.ListSuspicionParams) ([]*engine.SuspicionRecord, int, error) {
	m.params = p
	return []*engine.SuspicionRecord{{
		ID: "rec-1", UserID: testUser, GuildID: testGuild,
		Breakdown:      engine.SuspicionScoreBreakdown{TotalScore: 88},
		Recommendation: engine.RecommendBan,
	}}, 1, nil
}

func (m *mockDetections) ResolveSuspicionRecord(_ context.Context, id, notes string) (*engine.SuspicionRecord, error) {
	if id != "rec-1" {
		return nil, nil
	}
	now := time.Now()
	m.resolved = &engine.SuspicionRecord{ID: id, Resolved: true, ResolutionNotes: notes, ResolvedAt: &now}
	return m.resolved, nil
}

type mockClients struct{}

func (mockClients) CreateClient(_ context.Context, name string) (*store.APIClient, string, error) {
	return &store.APIClient{ID: "client-2", Name: name, APIKeyPrefix: "wsk_abcd"}, "wsk_abcdefgh", nil
}

func (mockClients) ListClients(context.Context) ([]*store.APIClient, error) {
	return []*store.APIClient{{ID: "client-1", Name: "economy-bot", APIKeyPrefix: "wsk_1234"}}, nil
}

func (mockClients) RotateAPIKey(_ context.Context, id string) (*store.APIClient, string, error) {
	if id != "client-1" {
		return nil, "", fmt.Errorf("RotateAPIKey: %w", store.ErrNotFound)
	}
	return &store.APIClient{ID: id, APIKeyPrefix: "wsk_9999"}, "wsk_99999999", nil
}

type mockReader struct {
	params chread.ListDecisionsParams
	days   int
}

func (m *mockReader) ListDecisions(_ context.Context, p chread.ListDecisionsParams) ([]chread.DecisionRow, int, error) {
	m.params = p
	return []chread.DecisionRow{{EventID: "e1", GuildID: p.GuildID, Action: "restrict"}}, 1, nil
}

func (m *mockReader) GetAnalytics(_ context.Context, _ string, days int) (*chread.AnalyticsResult, error) {
	m.days = days
	return &chread.AnalyticsResult{TotalDecisions: 3}, nil
}

// --- Helpers ---

type harness struct {
	handler    http.Handler
	svc        *mockService
	detections *mockDetections
	reader     *mockReader
}

func newHarness() *harness {
	h := &harness{svc: &mockService{}, detections: &mockDetections{}, reader: &mockReader{}}
	h.handler = NewRouter(&Dependencies{
		Service:    h.svc,
		Detections: h.detections,
		Clients:    mockClients{},
		Reader:     h.reader,
		Auth:       &mockAuth{key: botKey},
		Admin:      &mockAuth{key: adminKey},
		Logger:     zap.NewNop(),
	})
	return h
}

func (h *harness) do(method, path, authz, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(bytes.NewReader(rec.Body.Bytes())).Decode(&v); err != nil {
		t.Fatalf("decode response: %v (body %s)", err, rec.Body.String())
	}
	return v
}

func userPath(suffix string) string {
	return "/v1/guilds/" + testGuild + "/users/" + testUser + "/" + suffix
}

// --- Tests ---

func TestHealthz(t *testing.T) {
	rec := newHarness().do(http.MethodGet, "/healthz", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestAuth(t *testing.T) {
	h := newHarness()
	tests := []struct {
		name  string
		path  string
		authz string
		want  int
	}{
		{"bot route without key", userPath("trust"), "", http.StatusUnauthorized},
		{"bot route wrong key", userPath("trust"), "Bearer wsk_other", http.StatusUnauthorized},
		{"bot route ok", userPath("trust"), botKey, http.StatusOK},
		{"admin route with bot key", "/api/warden/clients", botKey, http.StatusUnauthorized},
		{"admin route ok", "/api/warden/clients", adminKey, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := h.do(http.MethodGet, tt.path, tt.authz, ""); rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestAuth_BackendUnavailable(t *testing.T) {
	handler := NewRouter(&Dependencies{
		Service: &mockService{},
		Auth:    &mockAuth{err: fmt.Errorf("%w: connection refused", auth.ErrAuthUnavailable)},
		Logger:  zap.NewNop(),
	})
	req := httptest.NewRequest(http.MethodGet, userPath("trust"), nil)
	req.Header.Set("Authorization", botKey)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestRecordCommand(t *testing.T) {
	h := newHarness()
	body := `{"user_id":"` + testUser + `","guild_id":"` + testGuild + `","command_name":"work","success":true,"response_time_ms":85,"metadata":{"earned":250,"job":"chef"}}`

	rec := h.do(http.MethodPost, "/v1/commands", botKey, body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (body %s)", rec.Code, rec.Body.String())
	}
	resp := decode[RecordCommandResp](t, rec)
	if !resp.Recorded || resp.EventID != "evt-1" || !resp.AnalysisQueued {
		t.Errorf("unexpected response: %+v", resp)
	}
	in := h.svc.recorded
	if in == nil || in.CommandName != "work" || *in.ResponseTimeMs != 85 || in.Metadata["job"] != "chef" {
		t.Errorf("unexpected service input: %+v", in)
	}
}

func manyKeys(n int) string {
	md := make(map[string]int, n)
	for i := range n {
		md[fmt.Sprintf("k%d", i)] = i
	}
	b, _ := json.Marshal(md)
	return string(b)
}

func TestRecordCommand_NestedMetadata(t *testing.T) {
	h := newHarness()
	body := `{"user_id":"` + testUser + `","guild_id":"` + testGuild + `","command_name":"fish","success":true,"metadata":{"catch":{"kind":"salmon","tags":["rare",2]}}}`
	rec := h.do(http.MethodPost, "/v1/commands", botKey, body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (body %s)", rec.Code, rec.Body.String())
	}
	catch, ok := h.svc.recorded.Metadata["catch"].(map[string]any)
	if !ok || catch["kind"] != "salmon" {
		t.Errorf("unexpected metadata: %+v", h.svc.recorded.Metadata)
	}
}

func TestRecordCommand_SchemaRejects(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `{`},
		{"missing success", `{"user_id":"` + testUser + `","guild_id":"` + testGuild + `","command_name":"work"}`},
		{"bad snowflake", `{"user_id":"abc","guild_id":"` + testGuild + `","command_name":"work","success":true}`},
		{"too many metadata keys", `{"user_id":"` + testUser + `","guild_id":"` + testGuild + `","command_name":"work","success":true,"metadata":` + manyKeys(33) + `}`},
		{"fractional response time", `{"user_id":"` + testUser + `","guild_id":"` + testGuild + `","command_name":"work","success":true,"response_time_ms":1.5}`},
		{"unknown field", `{"user_id":"` + testUser + `","guild_id":"` + testGuild + `","command_name":"work","success":true,"extra":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			rec := h.do(http.MethodPost, "/v1/commands", botKey, tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400 (body %s)", rec.Code, rec.Body.String())
			}
			if h.svc.recorded != nil {
				t.Error("service must not be called for rejected bodies")
			}
		})
	}
}

func TestServiceErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid input", fmt.Errorf("%w: user_id must be a Discord snowflake ID", anticheat.ErrInvalidInput), http.StatusBadRequest},
		{"upstream", fmt.Errorf("%w: account: %w", anticheat.ErrUpstreamUnavailable, errors.New("502")), http.StatusServiceUnavailable},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			h.svc.err = tt.err
			if rec := h.do(http.MethodGet, userPath("suspicion"), botKey, ""); rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestTiming(t *testing.T) {
	rec := newHarness().do(http.MethodGet, "/v1/users/"+testUser+"/timing", botKey, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	resp := decode[TimingResp](t, rec)
	if resp.Sufficient || resp.Reason != engine.ReasonInsufficientData || resp.Level != "none" || resp.EventCount != 12 {
		t.Errorf("unexpected response: %+v", resp)
	}
	if resp.Snipes == nil {
		t.Error("snipes should encode as an empty array")
	}
}

func TestTiming_CachedMetrics(t *testing.T) {
	h := newHarness()
	if raw := decode[map[string]any](t, h.do(http.MethodGet, "/v1/users/"+testUser+"/timing", botKey, "")); raw["cached_metrics"] != nil {
		t.Errorf("cached_metrics = %v, want null", raw["cached_metrics"])
	}

	analyzed := time.Date(2025, 3, 14, 11, 59, 0, 0, time.UTC)
	h.svc.cached = &engine.BehaviorMetrics{UserID: testUser, TotalCommands: 40, AvgIntervalSec: 3600, CVBasisPoints: 150, LastAnalysisAt: analyzed}
	rec := h.do(http.MethodGet, "/v1/users/"+testUser+"/timing", botKey, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	c := decode[TimingResp](t, rec).CachedMetrics
	if c == nil {
		t.Fatal("expected cached_metrics")
	}
	if c.TotalCommands != 40 || c.CoefficientVariationPct != 1.5 || !c.LastAnalysisAt.Equal(analyzed) {
		t.Errorf("unexpected cached metrics: %+v", c)
	}
}

func TestBehavior(t *testing.T) {
	rec := newHarness().do(http.MethodGet, userPath("behavior"), botKey, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	resp := decode[BehaviorResp](t, rec)
	if resp.Sufficient || resp.BehavioralScore != 0 || resp.GuildID != testGuild {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestSuspicion(t *testing.T) {
	h := newHarness()
	h.svc.breakdown = engine.ComputeSuspicion(engine.SuspicionInputs{Timing: 100, Behavioral: 80, RateLimit: 60, Social: 100, Account: 100})

	rec := h.do(http.MethodGet, userPath("suspicion"), botKey, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var raw map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &raw); err != nil {
		t.Fatal(err)
	}
	if raw["total_score"] != float64(87) || raw["recommendation"] != "ban" || raw["timing_score"] != float64(100) {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}

func TestEnforcement(t *testing.T) {
	tests := []struct {
		name   string
		action engine.EnforcementAction
		check  func(t *testing.T, raw map[string]any)
	}{
		{
			"rate limit",
			engine.EnforcementAction{Action: engine.ActionRateLimit, RateLimitMultiplier: 0.7, Message: "slow down"},
			func(t *testing.T, raw map[string]any) {
				if raw["rate_limit_multiplier"] != 0.7 {
					t.Errorf("multiplier = %v", raw["rate_limit_multiplier"])
				}
				if _, ok := raw["captcha_type"]; ok {
					t.Error("captcha_type should be omitted")
				}
			},
		},
		{
			"captcha",
			engine.EnforcementAction{Action: engine.ActionCaptcha, CaptchaType: engine.CaptchaImage, Message: "verify"},
			func(t *testing.T, raw map[string]any) {
				if raw["captcha_type"] != "image" {
					t.Errorf("captcha_type = %v", raw["captcha_type"])
				}
			},
		},
		{
			"restrict",
			engine.EnforcementAction{Action: engine.ActionRestrict, RestrictDurationMs: engine.RestrictDurationMs, Message: "restricted"},
			func(t *testing.T, raw map[string]any) {
				if raw["restrict_duration_ms"] != float64(3_600_000) {
					t.Errorf("restrict_duration_ms = %v", raw["restrict_duration_ms"])
				}
			},
		},
		{
			"none",
			engine.EnforcementAction{Action: engine.ActionNone},
			func(t *testing.T, raw map[string]any) {
				for _, k := range []string{"rate_limit_multiplier", "captcha_type", "restrict_duration_ms", "message"} {
					if _, ok := raw[k]; ok {
						t.Errorf("%s should be omitted", k)
					}
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			h.svc.action = tt.action
			rec := h.do(http.MethodGet, userPath("enforcement"), botKey, "")
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d", rec.Code)
			}
			raw := decode[map[string]any](t, rec)
			if raw["action"] != tt.action.Action.String() || raw["trust_score"] != float64(500) {
				t.Errorf("unexpected body: %s", rec.Body.String())
			}
			tt.check(t, raw)
		})
	}
}

func TestUpdateTrust(t *testing.T) {
	h := newHarness()
	rec := h.do(http.MethodPost, userPath("trust"), botKey, `{"delta":50,"reason":"clean week"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (body %s)", rec.Code, rec.Body.String())
	}
	resp := decode[TrustChangeResp](t, rec)
	if resp.OldScore != 990 || resp.NewScore != 1000 {
		t.Errorf("unexpected change: %+v", resp)
	}
	if in := h.svc.trustIn; in.UserID != testUser || in.GuildID != testGuild || in.Reason != "clean week" {
		t.Errorf("unexpected service input: %+v", in)
	}
}

func TestTrustHistory(t *testing.T) {
	h := newHarness()
	at := time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)
	h.svc.history = []engine.TrustScoreChange{
		{ID: 2, UserID: testUser, GuildID: testGuild, Delta: -100, OldScore: 550, NewScore: 450, Reason: "macro", CreatedAt: at},
		{ID: 1, UserID: testUser, GuildID: testGuild, Delta: 50, OldScore: 500, NewScore: 550, Reason: "clean week", CreatedAt: at.Add(-time.Hour)},
	}

	rec := h.do(http.MethodGet, userPath("trust/history")+"?limit=5", botKey, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (body %s)", rec.Code, rec.Body.String())
	}
	resp := decode[TrustHistoryResp](t, rec)
	if resp.UserID != testUser || resp.GuildID != testGuild || len(resp.Changes) != 2 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if c := resp.Changes[0]; c.ID != 2 || c.Delta != -100 || c.NewScore != 450 || c.Reason != "macro" || !c.CreatedAt.Equal(at) {
		t.Errorf("unexpected newest change: %+v", c)
	}
	if h.svc.historyLimit != 5 {
		t.Errorf("limit = %d, want 5", h.svc.historyLimit)
	}

	h.svc.history = nil
	if raw := decode[map[string]any](t, h.do(http.MethodGet, userPath("trust/history"), botKey, "")); raw["changes"] == nil {
		t.Error("changes should encode as an empty array")
	}
	if rec := h.do(http.MethodGet, userPath("trust/history"), "", ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("no auth: status = %d, want 401", rec.Code)
	}
}

func TestUpdateTrust_MissingDelta(t *testing.T) {
	h := newHarness()
	rec := h.do(http.MethodPost, userPath("trust"), botKey, `{"reason":"x"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if h.svc.trustIn != nil {
		t.Error("service must not be called")
	}
}

func TestDetections(t *testing.T) {
	h := newHarness()
	rec := h.do(http.MethodGet, "/api/warden/detections?guild_id="+testGuild+"&resolved=false&min_score=70&page_size=500", adminKey, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	resp := decode[DetectionListResp](t, rec)
	if resp.Total != 1 || len(resp.Detections) != 1 || resp.Detections[0].TotalScore != 88 {
		t.Errorf("unexpected response: %+v", resp)
	}
	p := h.detections.params
	if p.GuildID == nil || *p.GuildID != testGuild || p.Resolved == nil || *p.Resolved || p.MinScore == nil || *p.MinScore != 70 {
		t.Errorf("unexpected params: %+v", p)
	}
	if p.PageSize != 200 {
		t.Errorf("page size = %d, want clamped 200", p.PageSize)
	}

	h.do(http.MethodGet, "/api/warden/detections?min_score=256", adminKey, "")
	if p := h.detections.params; p.MinScore == nil || *p.MinScore != 100 {
		t.Errorf("min_score 256 should clamp to 100, got %v", p.MinScore)
	}
}

func TestResolveDetection(t *testing.T) {
	h := newHarness()

	rec := h.do(http.MethodPost, "/api/warden/detections/rec-1/resolve", adminKey, `{"notes":"confirmed macro"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if resp := decode[DetectionResp](t, rec); !resp.Resolved || resp.ResolutionNotes == nil || *resp.ResolutionNotes != "confirmed macro" {
		t.Errorf("unexpected response: %+v", resp)
	}

	if rec := h.do(http.MethodPost, "/api/warden/detections/missing/resolve", adminKey, `{"notes":"x"}`); rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	if rec := h.do(http.MethodPost, "/api/warden/detections/rec-1/resolve", adminKey, `{"notes":"  "}`); rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestDecisionsAndAnalytics(t *testing.T) {
	h := newHarness()

	if rec := h.do(http.MethodGet, "/api/warden/decisions", adminKey, ""); rec.Code != http.StatusBadRequest {
		t.Errorf("missing guild_id: status = %d, want 400", rec.Code)
	}

	rec := h.do(http.MethodGet, "/api/warden/decisions?guild_id="+testGuild+"&action=restrict&start_time=2025-03-01T00:00:00Z", adminKey, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if resp := decode[DecisionListResp](t, rec); resp.Total != 1 || resp.Decisions[0].Action != "restrict" {
		t.Errorf("unexpected response: %+v", resp)
	}
	if p := h.reader.params; p.Action == nil || *p.Action != "restrict" || p.StartTime == nil || p.EndTime != nil {
		t.Errorf("unexpected params: %+v", p)
	}

	if rec := h.do(http.MethodGet, "/api/warden/decisions?guild_id="+testGuild+"&min_score=256", adminKey, ""); rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if p := h.reader.params; p.MinScore == nil || *p.MinScore != 100 {
		t.Errorf("min_score 256 should clamp to 100, got %v", p.MinScore)
	}

	rec = h.do(http.MethodGet, "/api/warden/analytics?guild_id="+testGuild+"&days=365", adminKey, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if h.reader.days != 90 {
		t.Errorf("days = %d, want clamped 90", h.reader.days)
	}
}

func TestDecisions_NoClickHouse(t *testing.T) {
	handler := NewRouter(&Dependencies{Admin: &mockAuth{key: adminKey}, Logger: zap.NewNop()})
	req := httptest.NewRequest(http.MethodGet, "/api/warden/decisions?guild_id="+testGuild, nil)
	req.Header.Set("Authorization", adminKey)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestClients(t *testing.T) {
	h := newHarness()

	rec := h.do(http.MethodPost, "/api/warden/clients", adminKey, `{"name":"economy-bot"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d", rec.Code)
	}
	if resp := decode[CreateClientResp](t, rec); resp.APIKey != "wsk_abcdefgh" || resp.Name != "economy-bot" {
		t.Errorf("unexpected response: %+v", resp)
	}

	if rec := h.do(http.MethodPost, "/api/warden/clients", adminKey, `{"name":" "}`); rec.Code != http.StatusBadRequest {
		t.Errorf("blank name: status = %d, want 400", rec.Code)
	}

	rec = h.do(http.MethodPost, "/api/warden/clients/client-1/rotate-key", adminKey, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if resp := decode[RotateKeyResp](t, rec); resp.APIKeyPrefix != "wsk_9999" {
		t.Errorf("unexpected response: %+v", resp)
	}

	if rec := h.do(http.MethodPost, "/api/warden/clients/nope/rotate-key", adminKey, ""); rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	rec := newHarness().do(http.MethodOptions, "/v1/commands", "", "")
	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS header")
	}
}
