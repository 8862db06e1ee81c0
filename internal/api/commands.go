package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/triage-ai/warden/internal/anticheat"
)

const maxCommandBody = 64 << 10

// handleRecordCommand implements POST /v1/commands.
func (d *Dependencies) handleRecordCommand(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxCommandBody))
	_ = r.Body.Close()
	if err != nil {
		writeJSON(w, http.StatusRequestEntityTooLarge, ErrorResp{Detail: "Request body too large"})
		return
	}
	if msg := validateCommandBody(body); msg != "" {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: msg})
		return
	}

	var req RecordCommandReq
	if err := json.Unmarshal(body, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "Invalid JSON body"})
		return
	}

	res, err := d.Service.RecordCommandExecution(r.Context(), anticheat.RecordCommandInput{
		UserID:         req.UserID,
		GuildID:        req.GuildID,
		CommandName:    req.CommandName,
		Success:        req.Success,
		ResponseTimeMs: req.ResponseTimeMs,
		Metadata:       req.Metadata,
	})
	if err != nil {
		d.writeServiceError(w, "record command", err)
		return
	}

	writeJSON(w, http.StatusCreated, RecordCommandResp{
		Recorded:       res.Recorded,
		EventID:        res.EventID,
		AnalysisQueued: res.AnalysisQueued,
	})
}

// handleTiming implements GET /v1/users/{user_id}/timing.
func (d *Dependencies) handleTiming(w http.ResponseWriter, r *http.Request) {
	rep, err := d.Service.AnalyzeTimingPatterns(r.Context(), r.PathValue("user_id"))
	if err != nil {
		d.writeServiceError(w, "analyze timing", err)
		return
	}
	writeJSON(w, http.StatusOK, timingToResp(rep))
}
