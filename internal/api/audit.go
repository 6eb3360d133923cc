package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/nerrad567/railcontrol-core/internal/audit"
)

// auditWriteTimeout bounds a journal insert after the response is decided.
const auditWriteTimeout = 2 * time.Second

// record journals an operator command. Failures are logged; the command
// itself has already been applied.
func (s *Server) record(r *http.Request, action, entityType string, entityID uint32, details map[string]any) {
	if s.audit == nil {
		return
	}

	e := &audit.Entry{
		Action:     action,
		EntityType: entityType,
		Source:     "api",
		Details:    details,
	}
	if entityID != 0 {
		e.EntityID = strconv.FormatUint(uint64(entityID), 10)
	}
	if claims := claimsFromContext(r.Context()); claims != nil {
		e.Username = claims.Subject
	}
	s.writeAudit(r, e)
}

// writeAudit stores e, detached from the request's cancellation.
func (s *Server) writeAudit(r *http.Request, e *audit.Entry) {
	if s.audit == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), auditWriteTimeout)
	defer cancel()
	if err := s.audit.Create(ctx, e); err != nil {
		s.logger.Error("writing audit entry", "action", e.Action, "error", err)
	}
}

// handleListAudit returns a page of the journal.
//
// Query parameters: action, entity_type, entity_id, username, limit, offset.
func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "audit log requires a database")
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{
		Action:     q.Get("action"),
		EntityType: q.Get("entity_type"),
		EntityID:   q.Get("entity_id"),
		Username:   q.Get("username"),
	}
	for name, dst := range map[string]*int{"limit": &filter.Limit, "offset": &filter.Offset} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeBadRequest(w, "invalid "+name)
			return
		}
		*dst = n
	}

	res, err := s.audit.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("listing audit entries", "error", err)
		writeInternalError(w, "failed to list audit entries")
		return
	}
	writeJSON(w, http.StatusOK, res)
}
