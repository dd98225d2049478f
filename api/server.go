/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. accessLog:  zap access log
  4. Metrics:    Prometheus request counters and latency
  5. CORS:       Cross-origin requests for the dashboard frontend

  Under /api only:
  6. Auth:       Bearer JWT -> leave.Actor in the context
  7. Limiter:    Per-actor throttling of mutating calls

ROUTE GROUPS:
  /api/leave/*   Leave requests, balances, catalog and read models
  /healthz       Store liveness
  /metrics       Prometheus exposition

SEE ALSO:
  - handlers.go: Handler implementations
  - middleware.go: Auth, rate limiting and access log
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/warp/leave-engine/metrics"
)

// RouterConfig carries the cross-cutting pieces of the router.
type RouterConfig struct {
	Auth           *Authenticator
	Limiter        *ActorLimiter // nil disables rate limiting
	Metrics        *metrics.Metrics
	Logger         *zap.Logger
	AllowedOrigins []string
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, cfg RouterConfig) *chi.Mux {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(accessLog(logger.Named("http")))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware)
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", h.Health)
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	}

	r.Route("/api/leave", func(r chi.Router) {
		r.Use(cfg.Auth.Middleware)
		if cfg.Limiter != nil {
			r.Use(cfg.Limiter.Middleware)
		}

		r.Route("/requests", func(r chi.Router) {
			r.Post("/", h.CreateRequest)
			r.Get("/", h.ListRequests)
			r.Get("/{id}", h.GetRequest)
			r.Post("/{id}/approve", h.ApproveRequest)
			r.Post("/{id}/reject", h.RejectRequest)
			r.Post("/{id}/cancel", h.CancelRequest)
		})

		r.Get("/balances/{employee}/{type}", h.GetBalance)

		r.Route("/types", func(r chi.Router) {
			r.Get("/", h.ListLeaveTypes)
			r.Put("/{code}", h.PutLeaveType)
		})

		r.Get("/on-leave/{employee}", h.OnLeave)
		r.Get("/summary", h.Summary)
		r.Get("/dashboard", h.Dashboard)
	})

	return r
}
