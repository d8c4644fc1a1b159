package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// WebDAV-style methods used by existing clients for pairing.
const (
	methodLink   = "LINK"
	methodUnlink = "UNLINK"
)

func init() {
	chi.RegisterMethod(methodLink)
	chi.RegisterMethod(methodUnlink)
}

// healthCheckTimeout bounds each component check in /health.
const healthCheckTimeout = 2 * time.Second

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)
	r.Use(auditSourceMiddleware)

	// Bulb endpoints
	r.Route("/bulbs", func(r chi.Router) {
		r.Get("/", s.handleListBulbs)
		r.Post("/", s.handleCreateBulb)
		r.Delete("/all", s.handleDeleteAllBulbs)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetBulb)
			r.Put("/", s.handleUpdateBulb)
			r.Delete("/", s.handleDeleteBulb)
			r.Put("/state/{state}", s.handleSetState)
			r.Put("/toggle", s.handleToggle)
			r.Put("/brightness/{brightness}", s.handleSetBrightness)
			r.Put("/color/{color}", s.handleSetColor)
			r.Put("/command/{command}", s.handleCommand)
			r.Put("/bind", s.handleBind)
			r.Put("/unbind", s.handleUnbind)
			r.MethodFunc(methodLink, "/", s.handleBind)
			r.MethodFunc(methodUnlink, "/", s.handleUnbind)
		})
	})

	// Location views
	r.Get("/locations", s.handleListLocations)
	r.Get("/locations/", s.handleListLocations)
	r.Get("/location/{location}/bulbs", s.handleLocationBulbs)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)
		r.Get("/audit", s.handleListAuditLogs)
		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// handleHealth returns the server health status and the result of each
// registered component check. Any failing check makes the response 503.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	components := make(map[string]string, len(s.checks))

	for name, checker := range s.checks {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		err := checker.HealthCheck(ctx)
		cancel()

		if err != nil {
			components[name] = err.Error()
			status = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		components[name] = "ok"
	}

	writeJSON(w, code, map[string]any{
		"status":     status,
		"version":    s.version,
		"components": components,
	})
}
