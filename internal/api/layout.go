package api

import (
	"encoding/json"
	"net/http"

	"github.com/nerrad567/railcontrol-core/internal/audit"
	"github.com/nerrad567/railcontrol-core/internal/hardware"
	"github.com/nerrad567/railcontrol-core/internal/layout"
)

// blockRequest is the body of PUT /tracks/{id}/block.
type blockRequest struct {
	Blocked bool `json:"blocked"`
}

// deviceStateRequest is the body of PUT /devices/{id}/state.
type deviceStateRequest struct {
	State *hardware.DeviceState `json:"state"`
}

// feedbackStateRequest is the body of PUT /feedbacks/{id}/state. Raw is the
// pin reading before inversion, as a control would report it.
type feedbackStateRequest struct {
	Raw *bool `json:"raw"`
}

// --- Tracks ---

func (s *Server) handleListTracks(w http.ResponseWriter, _ *http.Request) {
	tracks := s.mgr.Layout().Tracks()
	writeJSON(w, http.StatusOK, map[string]any{"tracks": tracks, "count": len(tracks)})
}

func (s *Server) handleGetTrack(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r, "id")
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	snap, err := s.mgr.Layout().Track(layout.TrackID(id))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleListStreetsFrom lists the streets leaving a track.
func (s *Server) handleListStreetsFrom(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r, "id")
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	l := s.mgr.Layout()
	if _, err := l.Track(layout.TrackID(id)); err != nil {
		s.writeDomainError(w, err)
		return
	}
	streets := l.StreetsFrom(layout.TrackID(id))
	writeJSON(w, http.StatusOK, map[string]any{"streets": streets, "count": len(streets)})
}

func (s *Server) handleBlockTrack(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r, "id")
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	var req blockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if err := s.mgr.BlockTrack(layout.TrackID(id), req.Blocked); err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.record(r, audit.ActionBlock, audit.EntityTrack, id, map[string]any{"blocked": req.Blocked})
	snap, err := s.mgr.Layout().Track(layout.TrackID(id))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// --- Streets ---

func (s *Server) handleListStreets(w http.ResponseWriter, _ *http.Request) {
	streets := s.mgr.Layout().Streets()
	writeJSON(w, http.StatusOK, map[string]any{"streets": streets, "count": len(streets)})
}

func (s *Server) handleGetStreet(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r, "id")
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	snap, err := s.mgr.Layout().Street(layout.StreetID(id))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// --- Devices ---

func (s *Server) handleListDevices(w http.ResponseWriter, _ *http.Request) {
	devices := s.mgr.Layout().Devices()
	writeJSON(w, http.StatusOK, map[string]any{"devices": devices, "count": len(devices)})
}

func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r, "id")
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	snap, err := s.mgr.Layout().Device(layout.DeviceID(id))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleSetDeviceState switches a device by hand. Devices held by a route
// are refused with 409.
func (s *Server) handleSetDeviceState(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r, "id")
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	var req deviceStateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.State == nil {
		writeBadRequest(w, "body must be {\"state\": \"on\"|\"off\"}")
		return
	}
	if err := s.mgr.DeviceState(layout.DeviceID(id), *req.State); err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.record(r, audit.ActionDeviceState, audit.EntityDevice, id, map[string]any{"state": req.State.String()})
	snap, err := s.mgr.Layout().Device(layout.DeviceID(id))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// --- Feedbacks ---

func (s *Server) handleListFeedbacks(w http.ResponseWriter, _ *http.Request) {
	feedbacks := s.mgr.Layout().Feedbacks()
	writeJSON(w, http.StatusOK, map[string]any{"feedbacks": feedbacks, "count": len(feedbacks)})
}

func (s *Server) handleGetFeedback(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r, "id")
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	snap, err := s.mgr.Layout().Feedback(layout.FeedbackID(id))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleSetFeedbackState injects a pin reading, for layouts driven from a
// panel or for testing without sensors.
func (s *Server) handleSetFeedbackState(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r, "id")
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	var req feedbackStateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Raw == nil {
		writeBadRequest(w, "body must be {\"raw\": true|false}")
		return
	}
	if err := s.mgr.FeedbackState(layout.FeedbackID(id), *req.Raw); err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.record(r, audit.ActionFeedbackInject, audit.EntityFeedback, id, map[string]any{"raw": *req.Raw})
	snap, err := s.mgr.Layout().Feedback(layout.FeedbackID(id))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}
