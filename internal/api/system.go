package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/nerrad567/railcontrol-core/internal/audit"
	"github.com/nerrad567/railcontrol-core/internal/hardware"
)

// boosterRequest is the body of PUT /booster.
type boosterRequest struct {
	State string `json:"state"`
}

func (s *Server) handleGetBooster(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"state": s.mgr.BoosterState()})
}

// handleSetBooster switches track power on every control.
func (s *Server) handleSetBooster(w http.ResponseWriter, r *http.Request) {
	var req boosterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	state, err := hardware.ParseBoosterState(req.State)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
		return
	}

	s.mgr.Booster(state)
	s.record(r, audit.ActionBooster, audit.EntitySystem, 0, map[string]any{"state": state.String()})
	if claims := claimsFromContext(r.Context()); claims != nil {
		s.logger.Info("booster switched", "state", state, "username", claims.Subject)
	}
	writeJSON(w, http.StatusOK, map[string]any{"state": state})
}

// handleSnapshot writes the layout and every loco to storage immediately.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if err := s.mgr.SaveAll(r.Context()); err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.record(r, audit.ActionSnapshot, audit.EntitySystem, 0, nil)
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "saved",
		"duration_ms": time.Since(start).Milliseconds(),
	})
}
