package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/cloudlink-core/internal/auth"
	"github.com/nerrad567/cloudlink-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/cloudlink-core/internal/session"
)

// healthCheckTimeout bounds each component check in GET /health.
const healthCheckTimeout = 2 * time.Second

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		// Health stays open for load balancers and supervisors.
		r.Get("/health", s.handleHealth)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Get("/metrics", s.handleMetrics)

			r.Route("/devices", func(r chi.Router) {
				r.Get("/", s.handleListDevices)
				r.Get("/stats", s.handleDeviceStats)
				r.Get("/{id}", s.handleGetDevice)
			})

			r.With(s.requireRole(auth.RoleOperator)).Post("/discover", s.handleDiscover)
			r.Get("/events", s.handleListEvents)

			r.Get("/ws", s.handleWebSocket)
		})
	})

	return r
}

// handleHealth reports the session, push channel, and component health.
// It answers 503 when the push channel is not subscribed or a check fails.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	healthy := s.manager.State() == session.StateStarted &&
		s.manager.ConnectionState() == mqtt.StateSubscribed

	checks := make(map[string]string, len(s.checks))
	for name, c := range s.checks {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		err := c.HealthCheck(ctx)
		cancel()
		if err != nil {
			healthy = false
			checks[name] = err.Error()
			continue
		}
		checks[name] = "ok"
	}

	status, code := "ok", http.StatusOK
	if !healthy {
		status, code = "degraded", http.StatusServiceUnavailable
	}

	writeJSON(w, code, map[string]any{
		"status":     status,
		"version":    s.version,
		"session":    s.manager.State(),
		"connection": s.manager.ConnectionState(),
		"checks":     checks,
	})
}
