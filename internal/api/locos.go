package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/railcontrol-core/internal/audit"
	"github.com/nerrad567/railcontrol-core/internal/hardware"
	"github.com/nerrad567/railcontrol-core/internal/layout"
)

// speedRequest is the body of PUT /locos/{id}/speed.
type speedRequest struct {
	Speed *int `json:"speed"`
}

// orientationRequest is the body of PUT /locos/{id}/orientation.
type orientationRequest struct {
	Orientation *hardware.Orientation `json:"orientation"`
}

// functionRequest is the body of PUT /locos/{id}/functions/{nr}.
type functionRequest struct {
	On bool `json:"on"`
}

// intoTrackRequest is the body of POST /locos/{id}/track.
type intoTrackRequest struct {
	Track layout.TrackID `json:"track"`
}

// urlID parses a uint32 path parameter.
func urlID(r *http.Request, name string) (uint32, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return uint32(id), nil
}

// locoID parses the {id} parameter and writes a 400 on failure.
func locoID(w http.ResponseWriter, r *http.Request) (layout.LocoID, bool) {
	id, err := urlID(r, "id")
	if err != nil {
		writeBadRequest(w, err.Error())
		return layout.LocoNone, false
	}
	return layout.LocoID(id), true
}

func (s *Server) handleListLocos(w http.ResponseWriter, _ *http.Request) {
	locos := s.mgr.Locos()
	writeJSON(w, http.StatusOK, map[string]any{
		"locos": locos,
		"count": len(locos),
	})
}

func (s *Server) handleGetLoco(w http.ResponseWriter, r *http.Request) {
	id, ok := locoID(w, r)
	if !ok {
		return
	}
	snap, err := s.mgr.Loco(id)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleRemoveLoco deletes a manual-mode loco and its stored record.
func (s *Server) handleRemoveLoco(w http.ResponseWriter, r *http.Request) {
	id, ok := locoID(w, r)
	if !ok {
		return
	}
	if err := s.mgr.RemoveLoco(r.Context(), id); err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.record(r, audit.ActionRemove, audit.EntityLoco, uint32(id), nil)
	w.WriteHeader(http.StatusNoContent)
}

// handleLocoStart puts a loco into automode.
func (s *Server) handleLocoStart(w http.ResponseWriter, r *http.Request) {
	id, ok := locoID(w, r)
	if !ok {
		return
	}
	if err := s.mgr.LocoStart(id); err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.record(r, audit.ActionAutomodeStart, audit.EntityLoco, uint32(id), nil)
	s.writeLoco(w, http.StatusAccepted, id)
}

// handleLocoStop requests manual mode. The response carries the state the
// loco is in now: manual if it was idle, stopping if it is finishing a
// journey.
func (s *Server) handleLocoStop(w http.ResponseWriter, r *http.Request) {
	id, ok := locoID(w, r)
	if !ok {
		return
	}
	state, err := s.mgr.LocoStop(id)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.record(r, audit.ActionAutomodeStop, audit.EntityLoco, uint32(id), map[string]any{"state": state.String()})
	writeJSON(w, http.StatusAccepted, map[string]any{
		"id":    id,
		"state": state,
	})
}

func (s *Server) handleStartAll(w http.ResponseWriter, r *http.Request) {
	started, err := s.mgr.LocoStartAll()
	resp := map[string]any{"started": started}
	if err != nil {
		resp["errors"] = err.Error()
	}
	s.record(r, audit.ActionStartAll, audit.EntitySystem, 0, map[string]any{"started": started})
	writeJSON(w, http.StatusAccepted, resp)
}

func (s *Server) handleStopAll(w http.ResponseWriter, r *http.Request) {
	s.mgr.LocoStopAll()
	s.record(r, audit.ActionStopAll, audit.EntitySystem, 0, nil)
	writeJSON(w, http.StatusAccepted, map[string]any{"status": "stopping"})
}

func (s *Server) handleSetLocoSpeed(w http.ResponseWriter, r *http.Request) {
	id, ok := locoID(w, r)
	if !ok {
		return
	}
	var req speedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Speed == nil {
		writeBadRequest(w, "body must be {\"speed\": <0..1023>}")
		return
	}
	if *req.Speed < int(hardware.MinSpeed) || *req.Speed > int(hardware.MaxSpeed) {
		writeError(w, http.StatusBadRequest, ErrCodeValidation,
			fmt.Sprintf("speed must be between %d and %d", hardware.MinSpeed, hardware.MaxSpeed))
		return
	}
	if err := s.mgr.LocoSpeed(id, hardware.Speed(*req.Speed)); err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeLoco(w, http.StatusOK, id)
}

func (s *Server) handleSetLocoOrientation(w http.ResponseWriter, r *http.Request) {
	id, ok := locoID(w, r)
	if !ok {
		return
	}
	var req orientationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Orientation == nil {
		writeBadRequest(w, "body must be {\"orientation\": \"left\"|\"right\"}")
		return
	}
	if err := s.mgr.LocoOrientation(id, *req.Orientation); err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeLoco(w, http.StatusOK, id)
}

func (s *Server) handleSetLocoFunction(w http.ResponseWriter, r *http.Request) {
	id, ok := locoID(w, r)
	if !ok {
		return
	}
	nr, err := strconv.ParseUint(chi.URLParam(r, "nr"), 10, 8)
	if err != nil {
		writeBadRequest(w, "invalid function number")
		return
	}
	var req functionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if err := s.mgr.LocoFunction(id, uint8(nr), req.On); err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeLoco(w, http.StatusOK, id)
}

// handleLocoIntoTrack places a manual-mode loco without a track.
func (s *Server) handleLocoIntoTrack(w http.ResponseWriter, r *http.Request) {
	id, ok := locoID(w, r)
	if !ok {
		return
	}
	var req intoTrackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Track == layout.TrackNone {
		writeBadRequest(w, "body must be {\"track\": <id>}")
		return
	}
	if err := s.mgr.LocoIntoTrack(id, req.Track); err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.record(r, audit.ActionIntoTrack, audit.EntityLoco, uint32(id), map[string]any{"track": req.Track})
	s.writeLoco(w, http.StatusOK, id)
}

// handleLocoRelease frees everything a manual-mode loco holds.
func (s *Server) handleLocoRelease(w http.ResponseWriter, r *http.Request) {
	id, ok := locoID(w, r)
	if !ok {
		return
	}
	if err := s.mgr.LocoRelease(id); err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.record(r, audit.ActionRelease, audit.EntityLoco, uint32(id), nil)
	s.writeLoco(w, http.StatusOK, id)
}

// writeLoco responds with the current snapshot of a loco.
func (s *Server) writeLoco(w http.ResponseWriter, status int, id layout.LocoID) {
	snap, err := s.mgr.Loco(id)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, status, snap)
}
