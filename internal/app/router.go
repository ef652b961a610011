package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/DukeRupert/hirelane/internal"
	"github.com/DukeRupert/hirelane/internal/billing"
	"github.com/DukeRupert/hirelane/internal/handler"
	"github.com/DukeRupert/hirelane/internal/metrics"
	"github.com/DukeRupert/hirelane/internal/middleware"
	"github.com/DukeRupert/hirelane/internal/service"
)

// Deps are the collaborators the router needs. Billing and Files may be nil.
type Deps struct {
	Config   *internal.Config
	Logger   *slog.Logger
	DB       handler.Pinger
	Verifier middleware.TokenVerifier
	Billing  billing.Service

	Quota      service.QuotaService
	Dispatcher service.AnalysisDispatcher
	Reset      service.ResetJob
	Candidates service.CandidateService

	ApplyLimiter *middleware.RateLimiter
	Files        http.Handler
}

// NewRouter mounts every endpoint behind the shared middleware chain.
func NewRouter(d Deps) http.Handler {
	cfg, logger := d.Config, d.Logger

	authMw := middleware.NewAuthMiddleware(d.Verifier, logger)
	cronMw := middleware.NewSecretMiddleware("Authorization", cfg.CronSecret, logger)
	callbackMw := middleware.NewSecretMiddleware("X-Callback-Secret", cfg.ScoringCallbackSecret, logger)
	rateLimitMw := middleware.NewRateLimitMiddleware(d.ApplyLimiter, logger)
	metricsAuthMw := middleware.NewMetricsAuthMiddleware(cfg.MetricsUsername, cfg.MetricsPassword, logger)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(middleware.NewRequestLoggingMiddleware(logger).Handler)
	r.Use(chimw.Recoverer)
	r.Use(middleware.NewSecurityHeadersMiddleware(!cfg.IsDevelopment()).Handler)
	r.Use(middleware.NewCORSMiddleware(cfg.CORSAllowedOrigins).Handler)
	r.Use(metrics.Middleware)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		handler.NotFoundResponse(w, r, logger)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		handler.MethodNotAllowedResponse(w, r, logger)
	})

	handler.NewHealthHandler(d.DB, logger).RegisterRoutes(r)
	r.With(metricsAuthMw.Handler).Method(http.MethodGet, "/metrics", promhttp.Handler())

	handler.NewCreditsHandler(d.Quota, d.Dispatcher, logger).RegisterRoutes(r, authMw.RequireAccount)
	handler.NewAdminHandler(d.Quota, logger).RegisterRoutes(r, authMw.RequireAccount, authMw.RequireAdmin)
	handler.NewResetHandler(d.Reset, logger).RegisterRoutes(r, cronMw.Handler)
	handler.NewApplyHandler(d.Candidates, logger).RegisterRoutes(r, rateLimitMw.Limit)
	handler.NewScoringHandler(d.Candidates, logger).RegisterRoutes(r, callbackMw.Handler)
	handler.NewWebhookHandler(d.Billing, d.Quota, logger).RegisterRoutes(r)

	if d.Files != nil {
		r.Method(http.MethodGet, "/files/*", http.StripPrefix("/files/", d.Files))
	}

	return r
}
