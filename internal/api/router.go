package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/indicator-core/internal/auth"
	"github.com/nerrad567/indicator-core/internal/panel"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// Browser wall panel, embedded via go:embed
	r.Handle("/panel/*", http.StripPrefix("/panel", panel.Handler(s.cfg.PanelDir)))
	r.Handle("/panel", http.RedirectHandler("/panel/", http.StatusMovedPermanently))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Post("/auth/login", s.handleLogin)

		// Basic monitoring, no auth
		r.Get("/metrics", s.handleMetrics)

		// WebSocket (auth via ticket, validated in handler)
		r.Get("/ws", s.handleWebSocket)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Post("/auth/ws-ticket", s.handleWSTicket)

			r.With(requirePermission(auth.PermStateRead)).Get("/state", s.handleGetState)
			r.With(requirePermission(auth.PermHistoryRead)).Get("/history", s.handleGetHistory)

			r.With(requirePermission(auth.PermModeOperate)).Put("/modes/{mode}", s.handleSetMode)
			r.With(requirePermission(auth.PermModeOperate)).Post("/modes/{mode}/toggle", s.handleToggleMode)
		})
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"version":   s.version,
		"device_id": s.deviceID,
	})
}
