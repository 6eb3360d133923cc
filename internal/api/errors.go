package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/railcontrol-core/internal/hardware"
	"github.com/nerrad567/railcontrol-core/internal/layout"
	"github.com/nerrad567/railcontrol-core/internal/loco"
	"github.com/nerrad567/railcontrol-core/internal/manager"
	"github.com/nerrad567/railcontrol-core/internal/storage"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes.
const (
	ErrCodeBadRequest     = "bad_request"
	ErrCodeNotFound       = "not_found"
	ErrCodeUnauthorized   = "unauthorised"
	ErrCodeForbidden      = "forbidden"
	ErrCodeConflict       = "conflict"
	ErrCodeInternal       = "internal_error"
	ErrCodeValidation     = "validation_error"
	ErrCodeMethodNotAllow = "method_not_allowed"
	ErrCodeUnavailable    = "unavailable"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeNotFound writes a 404 error response.
func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// writeUnauthorized writes a 401 error response.
func writeUnauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

// writeForbidden writes a 403 error response.
func writeForbidden(w http.ResponseWriter, message string) {
	writeError(w, http.StatusForbidden, ErrCodeForbidden, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeDomainError maps a sentinel error from the domain packages to a
// response. Unknown errors are logged and reported as 500.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, manager.ErrLocoNotFound),
		errors.Is(err, layout.ErrTrackNotFound),
		errors.Is(err, layout.ErrStreetNotFound),
		errors.Is(err, layout.ErrDeviceNotFound),
		errors.Is(err, layout.ErrFeedbackNotFound),
		errors.Is(err, storage.ErrNotFound):
		writeNotFound(w, err.Error())

	case errors.Is(err, loco.ErrNotOnTrack),
		errors.Is(err, loco.ErrErrorState),
		errors.Is(err, loco.ErrAlreadyRunning),
		errors.Is(err, loco.ErrAutomodeActive),
		errors.Is(err, loco.ErrHasTrack),
		errors.Is(err, layout.ErrInUse),
		errors.Is(err, layout.ErrDeviceLocked),
		errors.Is(err, layout.ErrExists),
		errors.Is(err, manager.ErrLocoExists):
		writeError(w, http.StatusConflict, ErrCodeConflict, err.Error())

	case errors.Is(err, loco.ErrInvalidFunction),
		errors.Is(err, loco.ErrInvalidConfig),
		errors.Is(err, layout.ErrInvalidValue),
		errors.Is(err, layout.ErrInvalidObject),
		errors.Is(err, hardware.ErrInvalidValue):
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())

	case errors.Is(err, manager.ErrNoRepository):
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, err.Error())

	default:
		s.logger.Error("request failed", "error", err)
		writeInternalError(w, "internal server error")
	}
}
