package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/railcontrol-core/internal/auth"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		r.Post("/auth/login", s.handleLogin)

		// WebSocket (auth via ticket, validated in handler)
		r.Get("/ws", s.handleWebSocket)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Get("/auth/me", s.handleMe)
			r.Post("/auth/ws-ticket", s.handleWSTicket)

			// Read access
			r.Group(func(r chi.Router) {
				r.Use(requirePermission(auth.PermLayoutRead))

				r.Get("/metrics", s.handleMetrics)
				r.Get("/booster", s.handleGetBooster)
				r.Get("/locos", s.handleListLocos)
				r.Get("/locos/{id}", s.handleGetLoco)
				r.Get("/tracks", s.handleListTracks)
				r.Get("/tracks/{id}", s.handleGetTrack)
				r.Get("/tracks/{id}/streets", s.handleListStreetsFrom)
				r.Get("/streets", s.handleListStreets)
				r.Get("/streets/{id}", s.handleGetStreet)
				r.Get("/devices", s.handleListDevices)
				r.Get("/devices/{id}", s.handleGetDevice)
				r.Get("/feedbacks", s.handleListFeedbacks)
				r.Get("/feedbacks/{id}", s.handleGetFeedback)
			})

			// Manual locomotive control
			r.Group(func(r chi.Router) {
				r.Use(requirePermission(auth.PermLocoOperate))

				r.Delete("/locos/{id}", s.handleRemoveLoco)
				r.Put("/locos/{id}/speed", s.handleSetLocoSpeed)
				r.Put("/locos/{id}/orientation", s.handleSetLocoOrientation)
				r.Put("/locos/{id}/functions/{nr}", s.handleSetLocoFunction)
				r.Post("/locos/{id}/track", s.handleLocoIntoTrack)
				r.Post("/locos/{id}/release", s.handleLocoRelease)
			})

			// Automode
			r.Group(func(r chi.Router) {
				r.Use(requirePermission(auth.PermAutomode))

				r.Post("/locos/{id}/start", s.handleLocoStart)
				r.Post("/locos/{id}/stop", s.handleLocoStop)
				r.Post("/automode/start", s.handleStartAll)
				r.Post("/automode/stop", s.handleStopAll)
			})

			// Layout operation
			r.Group(func(r chi.Router) {
				r.Use(requirePermission(auth.PermLayoutOperate))

				r.Put("/tracks/{id}/block", s.handleBlockTrack)
				r.Put("/devices/{id}/state", s.handleSetDeviceState)
				r.Put("/feedbacks/{id}/state", s.handleSetFeedbackState)
			})

			r.With(requirePermission(auth.PermBooster)).Put("/booster", s.handleSetBooster)
			r.With(requirePermission(auth.PermSystemSnapshot)).Post("/system/snapshot", s.handleSnapshot)
			r.With(requirePermission(auth.PermAuditRead)).Get("/audit", s.handleListAudit)
		})
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}
