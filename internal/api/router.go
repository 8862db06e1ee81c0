package api

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/triage-ai/warden/internal/anticheat"
	"github.com/triage-ai/warden/internal/auth"
	"github.com/triage-ai/warden/internal/chread"
	"github.com/triage-ai/warden/internal/engine"
	"github.com/triage-ai/warden/internal/store"
)

// Service is the anti-cheat core as seen by the HTTP layer.
type Service interface {
	RecordCommandExecution(ctx context.Context, in anticheat.RecordCommandInput) (anticheat.RecordResult, error)
	AnalyzeTimingPatterns(ctx context.Context, userID string) (*anticheat.TimingReport, error)
	CalculateBehavioralScore(ctx context.Context, userID, guildID string) (*anticheat.BehavioralReport, error)
	CalculateSuspicionScore(ctx context.Context, userID, guildID string) (*anticheat.SuspicionReport, error)
	GetEnforcementAction(ctx context.Context, userID, guildID string) (*anticheat.EnforcementReport, error)
	UpdateTrustScore(ctx context.Context, in anticheat.TrustDeltaInput) (engine.TrustChange, error)
	GetTrustScore(ctx context.Context, userID, guildID string) (*engine.TrustScore, error)
	GetTrustHistory(ctx context.Context, userID, guildID string, limit int) ([]engine.TrustScoreChange, error)
}

// DetectionStore lists and resolves persisted suspicion records.
type DetectionStore interface {
	ListSuspicionRecords(ctx context.Context, params store.ListSuspicionParams) ([]*engine.SuspicionRecord, int, error)
	ResolveSuspicionRecord(ctx context.Context, id, notes string) (*engine.SuspicionRecord, error)
}

// ClientStore manages API clients.
type ClientStore interface {
	CreateClient(ctx context.Context, name string) (*store.APIClient, string, error)
	ListClients(ctx context.Context) ([]*store.APIClient, error)
	RotateAPIKey(ctx context.Context, id string) (*store.APIClient, string, error)
}

// DecisionReader reads enforcement analytics.
type DecisionReader interface {
	ListDecisions(ctx context.Context, params chread.ListDecisionsParams) ([]chread.DecisionRow, int, error)
	GetAnalytics(ctx context.Context, guildID string, days int) (*chread.AnalyticsResult, error)
}

// Dependencies holds shared state injected into all HTTP handlers.
type Dependencies struct {
	Service    Service
	Detections DetectionStore
	Clients    ClientStore
	Reader     DecisionReader // nil if ClickHouse unavailable
	Auth       auth.Authenticator
	Admin      auth.Authenticator
	Metrics    http.Handler // nil disables /metrics
	Logger     *zap.Logger
}

// NewRouter builds the HTTP mux with all routes wired up.
func NewRouter(deps *Dependencies) http.Handler {
	mux := http.NewServeMux()
	bot := func(h http.HandlerFunc) http.HandlerFunc { return deps.authMiddleware(deps.Auth, h) }
	admin := func(h http.HandlerFunc) http.HandlerFunc { return deps.authMiddleware(deps.Admin, h) }

	// Bot-facing anti-cheat operations (Bearer wsk_ API key)
	mux.HandleFunc("POST /v1/commands", bot(deps.handleRecordCommand))
	mux.HandleFunc("GET /v1/users/{user_id}/timing", bot(deps.handleTiming))
	mux.HandleFunc("GET /v1/guilds/{guild_id}/users/{user_id}/behavior", bot(deps.handleBehavior))
	mux.HandleFunc("GET /v1/guilds/{guild_id}/users/{user_id}/suspicion", bot(deps.handleSuspicion))
	mux.HandleFunc("GET /v1/guilds/{guild_id}/users/{user_id}/enforcement", bot(deps.handleEnforcement))
	mux.HandleFunc("GET /v1/guilds/{guild_id}/users/{user_id}/trust", bot(deps.handleGetTrust))
	mux.HandleFunc("POST /v1/guilds/{guild_id}/users/{user_id}/trust", bot(deps.handleUpdateTrust))
	mux.HandleFunc("GET /v1/guilds/{guild_id}/users/{user_id}/trust/history", bot(deps.handleTrustHistory))

	// Moderator tooling (admin token)
	mux.HandleFunc("GET /api/warden/detections", admin(deps.handleListDetections))
	mux.HandleFunc("POST /api/warden/detections/{id}/resolve", admin(deps.handleResolveDetection))
	mux.HandleFunc("GET /api/warden/decisions", admin(deps.handleListDecisions))
	mux.HandleFunc("GET /api/warden/analytics", admin(deps.handleGetAnalytics))
	mux.HandleFunc("GET /api/warden/clients", admin(deps.handleListClients))
	mux.HandleFunc("POST /api/warden/clients", admin(deps.handleCreateClient))
	mux.HandleFunc("POST /api/warden/clients/{id}/rotate-key", admin(deps.handleRotateKey))

	// Health check
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if deps.Metrics != nil {
		mux.Handle("GET /metrics", deps.Metrics)
	}

	return corsMiddleware(requestLogging(mux, deps.Logger))
}
