package api

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/triage-ai/warden/internal/engine"
	"github.com/triage-ai/warden/internal/store"
)

// handleListDetections implements GET /api/warden/detections.
func (d *Dependencies) handleListDetections(w http.ResponseWriter, r *http.Request) {
	params := store.ListSuspicionParams{
		GuildID: queryString(r, "guild_id"),
		UserID:  queryString(r, "user_id"),
	}
	params.Page, params.PageSize = pagination(r)
	if v := r.URL.Query().Get("resolved"); v != "" {
		b := v == "true" || v == "1"
		params.Resolved = &b
	}
	if v := queryInt(r, "min_score", -1); v >= 0 {
		v = engine.ClampScore(v)
		params.MinScore = &v
	}

	records, total, err := d.Detections.ListSuspicionRecords(r.Context(), params)
	if err != nil {
		d.Logger.Error("failed to list detections", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to list detections"})
		return
	}

	resp := DetectionListResp{
		Detections: make([]DetectionResp, 0, len(records)),
		Total:      total,
		Page:       params.Page,
		PageSize:   params.PageSize,
	}
	for _, rec := range records {
		resp.Detections = append(resp.Detections, detectionToResp(rec))
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleResolveDetection implements POST /api/warden/detections/{id}/resolve.
func (d *Dependencies) handleResolveDetection(w http.ResponseWriter, r *http.Request) {
	var req ResolveDetectionReq
	if err := readJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "Invalid JSON body"})
		return
	}
	req.Notes = strings.TrimSpace(req.Notes)
	if req.Notes == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "notes is required"})
		return
	}

	rec, err := d.Detections.ResolveSuspicionRecord(r.Context(), r.PathValue("id"), req.Notes)
	if err != nil {
		d.Logger.Error("failed to resolve detection", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to resolve detection"})
		return
	}
	if rec == nil {
		writeJSON(w, http.StatusNotFound, ErrorResp{Detail: "Detection not found."})
		return
	}
	writeJSON(w, http.StatusOK, detectionToResp(rec))
}
