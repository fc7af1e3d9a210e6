/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. RealIP:     Client address behind proxies
  3. hlog:       zerolog request logger and access log
  4. Recoverer:  Panic recovery (500 instead of crash)
  5. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/contracts/*      Contracts, transitions, evaluation, periods
  /api/benefits/*       Insurer and compensation fund assignments
  /api/parameters/*     Annual parameters
  /api/policy           Engine policy in effect
  /healthz              Liveness
  /metrics              Prometheus metrics

SECURITY NOTE:
  No authentication middleware. X-Actor-ID is recorded, never verified.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	Logger         zerolog.Logger
	AllowedOrigins []string
	// Gatherer serves /metrics. Nil uses the default registry.
	Gatherer prometheus.Gatherer
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"http://localhost:5173", "http://localhost:8080"}
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(hlog.NewHandler(opts.Logger))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	}))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", ActorHeader},
		AllowCredentials: true,
	}))

	r.Get("/healthz", h.Healthz)
	r.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Contract routes
		r.Route("/contracts", func(r chi.Router) {
			r.Get("/", h.ListContracts)
			r.Post("/", h.CreateContract)
			r.Get("/expiring", h.ExpiringContracts)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetContract)
				r.Put("/", h.UpdateContract)
				r.Get("/evaluation", h.EvaluateContract)
				r.Get("/audit", h.ContractAudit)

				r.Post("/approve", h.ApproveContract)
				r.Post("/annul", h.AnnulContract)
				r.Post("/archive", h.ArchiveContract)
				r.Post("/unarchive", h.UnarchiveContract)
				r.Post("/reopen", h.ReopenContract)

				// Fixed-term period routes
				r.Get("/periods", h.GetPeriods)
				r.Post("/periods", h.AppendPeriod)
				r.Put("/periods/current", h.ReplaceCurrentPeriod)
				r.Delete("/periods/{seq}", h.RemovePeriod)
			})
		})

		// Benefit routes
		r.Route("/benefits/{kind}/{employer}", func(r chi.Router) {
			r.Get("/history", h.BenefitHistory)
			r.Get("/active", h.ActiveBenefit)
			r.Post("/assign", h.AssignBenefit)
			r.Post("/change", h.ChangeBenefit)
			r.Post("/close", h.CloseBenefit)
		})

		// Parameter routes
		r.Route("/parameters", func(r chi.Router) {
			r.Get("/", h.ListParameters)
			r.Post("/", h.RegisterParameter)
			r.Get("/{type}/{year}", h.ResolveParameter)
			r.Delete("/{id}", h.ArchiveParameter)
		})

		r.Get("/policy", h.GetPolicy)
	})

	return r
}
