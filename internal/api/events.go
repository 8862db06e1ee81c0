package api

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/triage-ai/warden/internal/chread"
	"github.com/triage-ai/warden/internal/engine"
)

// handleListDecisions implements GET /api/warden/decisions.
func (d *Dependencies) handleListDecisions(w http.ResponseWriter, r *http.Request) {
	if d.Reader == nil {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResp{Detail: "ClickHouse not configured"})
		return
	}

	guildID := r.URL.Query().Get("guild_id")
	if guildID == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "guild_id query parameter is required"})
		return
	}

	params := chread.ListDecisionsParams{
		GuildID:   guildID,
		UserID:    queryString(r, "user_id"),
		Action:    queryString(r, "action"),
		StartTime: queryTime(r, "start_time"),
		EndTime:   queryTime(r, "end_time"),
	}
	params.Page, params.PageSize = pagination(r)
	if v := queryInt(r, "min_score", -1); v >= 0 {
		v = engine.ClampScore(v)
		params.MinScore = &v
	}

	rows, total, err := d.Reader.ListDecisions(r.Context(), params)
	if err != nil {
		d.Logger.Error("failed to list decisions", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to list decisions"})
		return
	}
	if rows == nil {
		rows = []chread.DecisionRow{}
	}

	writeJSON(w, http.StatusOK, DecisionListResp{
		Decisions: rows,
		Total:     total,
		Page:      params.Page,
		PageSize:  params.PageSize,
	})
}

// handleGetAnalytics implements GET /api/warden/analytics.
func (d *Dependencies) handleGetAnalytics(w http.ResponseWriter, r *http.Request) {
	if d.Reader == nil {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResp{Detail: "ClickHouse not configured"})
		return
	}

	guildID := r.URL.Query().Get("guild_id")
	if guildID == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "guild_id query parameter is required"})
		return
	}
	days := min(90, max(1, queryInt(r, "days", 7)))

	result, err := d.Reader.GetAnalytics(r.Context(), guildID, days)
	if err != nil {
		d.Logger.Error("failed to get analytics", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to get analytics"})
		return
	}

	writeJSON(w, http.StatusOK, result)
}
