package api

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/triage-ai/warden/internal/anticheat"
)

// handleBehavior implements GET /v1/guilds/{guild_id}/users/{user_id}/behavior.
func (d *Dependencies) handleBehavior(w http.ResponseWriter, r *http.Request) {
	rep, err := d.Service.CalculateBehavioralScore(r.Context(), r.PathValue("user_id"), r.PathValue("guild_id"))
	if err != nil {
		d.writeServiceError(w, "behavioral score", err)
		return
	}
	writeJSON(w, http.StatusOK, behaviorToResp(rep))
}

// handleSuspicion implements GET /v1/guilds/{guild_id}/users/{user_id}/suspicion.
func (d *Dependencies) handleSuspicion(w http.ResponseWriter, r *http.Request) {
	rep, err := d.Service.CalculateSuspicionScore(r.Context(), r.PathValue("user_id"), r.PathValue("guild_id"))
	if err != nil {
		d.writeServiceError(w, "suspicion score", err)
		return
	}
	writeJSON(w, http.StatusOK, SuspicionResp{
		UserID:         rep.UserID,
		GuildID:        rep.GuildID,
		BreakdownResp:  breakdownToResp(rep.Breakdown),
		Recommendation: string(rep.Recommendation),
		RecordID:       rep.RecordID,
	})
}

// handleEnforcement implements GET /v1/guilds/{guild_id}/users/{user_id}/enforcement.
func (d *Dependencies) handleEnforcement(w http.ResponseWriter, r *http.Request) {
	rep, err := d.Service.GetEnforcementAction(r.Context(), r.PathValue("user_id"), r.PathValue("guild_id"))
	if err != nil {
		d.writeServiceError(w, "enforcement action", err)
		return
	}
	writeJSON(w, http.StatusOK, enforcementToResp(rep))
}

// handleGetTrust implements GET /v1/guilds/{guild_id}/users/{user_id}/trust.
func (d *Dependencies) handleGetTrust(w http.ResponseWriter, r *http.Request) {
	ts, err := d.Service.GetTrustScore(r.Context(), r.PathValue("user_id"), r.PathValue("guild_id"))
	if err != nil {
		d.writeServiceError(w, "get trust", err)
		return
	}
	writeJSON(w, http.StatusOK, TrustScoreResp{
		UserID:    ts.UserID,
		GuildID:   ts.GuildID,
		Score:     ts.Score,
		CreatedAt: ts.CreatedAt,
		UpdatedAt: ts.UpdatedAt,
	})
}

// handleTrustHistory implements GET /v1/guilds/{guild_id}/users/{user_id}/trust/history.
func (d *Dependencies) handleTrustHistory(w http.ResponseWriter, r *http.Request) {
	changes, err := d.Service.GetTrustHistory(r.Context(), r.PathValue("user_id"), r.PathValue("guild_id"),
		queryInt(r, "limit", 0))
	if err != nil {
		d.writeServiceError(w, "trust history", err)
		return
	}
	resp := TrustHistoryResp{
		UserID:  r.PathValue("user_id"),
		GuildID: r.PathValue("guild_id"),
		Changes: make([]TrustChangeEntryResp, 0, len(changes)),
	}
	for _, c := range changes {
		resp.Changes = append(resp.Changes, TrustChangeEntryResp{
			ID:        c.ID,
			Delta:     c.Delta,
			OldScore:  c.OldScore,
			NewScore:  c.NewScore,
			Reason:    c.Reason,
			CreatedAt: c.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleUpdateTrust implements POST /v1/guilds/{guild_id}/users/{user_id}/trust.
func (d *Dependencies) handleUpdateTrust(w http.ResponseWriter, r *http.Request) {
	var req UpdateTrustReq
	if err := readJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "Invalid JSON body"})
		return
	}
	if req.Delta == nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "delta is required"})
		return
	}

	in := anticheat.TrustDeltaInput{
		UserID:  r.PathValue("user_id"),
		GuildID: r.PathValue("guild_id"),
		Delta:   *req.Delta,
		Reason:  req.Reason,
	}
	change, err := d.Service.UpdateTrustScore(r.Context(), in)
	if err != nil {
		d.writeServiceError(w, "update trust", err)
		return
	}

	if c := clientFromContext(r.Context()); c != nil {
		d.Logger.Info("trust delta applied",
			zap.String("client_id", c.ClientID),
			zap.String("user_id", in.UserID),
			zap.String("guild_id", in.GuildID),
			zap.Int("delta", in.Delta),
		)
	}
	writeJSON(w, http.StatusOK, TrustChangeResp{OldScore: change.OldScore, NewScore: change.NewScore})
}
