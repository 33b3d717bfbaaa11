package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-tvbridge/internal/auth"
	"github.com/nerrad567/gray-logic-tvbridge/internal/panel"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	if s.metrics != nil {
		r.Use(s.metrics.Middleware)
	}
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		// WebSocket authenticates with a ticket, not a bearer token.
		r.With(s.rateLimitMiddleware).Get("/ws", s.handleWebSocket)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Use(s.rateLimitMiddleware)

			r.With(requirePermission(auth.PermTVRead)).Post("/ws/ticket", s.handleWSTicket)

			r.Route("/tv", func(r chi.Router) {
				r.With(requirePermission(auth.PermTVRead)).Get("/", s.handleGetTV)

				r.Group(func(r chi.Router) {
					r.Use(requirePermission(auth.PermTVOperate))
					r.Post("/keys", s.handleKeys)
					r.Post("/text", s.handleText)
					r.Post("/power", s.handlePower)
					r.Post("/open", s.handleOpen)
					r.Post("/close", s.handleClose)
				})

				r.With(requirePermission(auth.PermTVPair)).Post("/pairing/pin", s.handlePin)
			})
		})
	})

	if s.cfg.Panel.Enabled {
		r.Handle("/*", panel.Handler(s.cfg.Panel.Dir))
	}

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	st := s.remote.Status()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"paired":  st.Paired,
	})
}
