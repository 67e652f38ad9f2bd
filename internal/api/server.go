// Package api exposes the management HTTP API.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/opensource-finance/kestrel/internal/auth"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/metrics"
	"github.com/opensource-finance/kestrel/internal/pipeline"
	"github.com/opensource-finance/kestrel/internal/stats"
)

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server with the full route tree mounted.
func NewServer(cfg domain.ServerConfig, repo domain.Repository, cache domain.Cache, bus domain.EventBus, processor *pipeline.Processor, statsSvc *stats.Service, tokens *auth.Manager, version string) *Server {
	handler := NewHandler(repo, cache, bus, processor, statsSvc, tokens, version)
	router := chi.NewRouter()

	// Global middleware stack
	router.Use(CORSMiddleware)         // CORS for browser clients
	router.Use(RecoverMiddleware)      // Recover from panics
	router.Use(TracingMiddleware)      // OpenTelemetry tracing
	router.Use(LoggingMiddleware)      // Request logging
	router.Use(MetricsMiddleware)      // Prometheus HTTP metrics
	router.Use(middleware.RealIP)      // Extract real IP
	router.Use(middleware.Compress(5)) // Gzip compression

	// Unauthenticated endpoints
	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)
	router.Method(http.MethodGet, "/metrics", metrics.Handler())

	router.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", handler.Login)

		// Authenticated API
		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(tokens))

			// Admin only
			r.Group(func(r chi.Router) {
				r.Use(RequireRole(domain.RoleAdmin))

				r.Post("/auth/register", handler.Register)

				r.Post("/rules", handler.CreateRule)
				r.Put("/rules/{id}", handler.UpdateRule)
				r.Delete("/rules/{id}", handler.DeleteRule)
				r.Put("/rules/{id}/enable", handler.EnableRule)
				r.Put("/rules/{id}/disable", handler.DisableRule)

				r.Get("/audit", handler.ListAudit)
			})

			// Admin and analyst
			r.Group(func(r chi.Router) {
				r.Use(RequireRole(domain.RoleAdmin, domain.RoleAnalyst))

				r.Post("/transactions", handler.CreateTransaction)
				r.Put("/transactions/{id}/flag", handler.FlagTransaction)

				r.Put("/alerts/{id}/status", handler.UpdateAlertStatus)
				r.Put("/alerts/{id}/resolve", handler.ResolveAlert)

				r.Post("/cases", handler.CreateCase)
				r.Put("/cases/{id}/status", handler.UpdateCaseStatus)
			})

			// Any authenticated role
			r.Get("/transactions", handler.ListTransactions)
			r.Get("/transactions/{id}", handler.GetTransaction)
			r.Get("/transactions/{id}/details", handler.GetTransactionDetails)
			r.Get("/transactions/account/{account}", handler.ListTransactionsByAccount)

			r.Get("/rules", handler.ListRules)
			r.Get("/rules/{id}", handler.GetRule)

			r.Get("/alerts", handler.ListAlerts)
			r.Get("/alerts/top-accounts", handler.TopAccounts)
			r.Get("/alerts/{id}", handler.GetAlert)

			r.Get("/cases", handler.ListCases)
			r.Get("/cases/{id}", handler.GetCase)
		})
	})

	return &Server{
		router:  router,
		handler: handler,
		config:  cfg,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the Chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}
