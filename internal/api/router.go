// Package api wires the wallet web service HTTP surface.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/loyaltywallet/walletsync/internal/api/handler"
	"github.com/loyaltywallet/walletsync/internal/api/middleware"
	"github.com/loyaltywallet/walletsync/internal/pass"
	"github.com/loyaltywallet/walletsync/internal/registration"
)

// RouterConfig holds the router's dependencies.
type RouterConfig struct {
	Version     string
	ServiceName string
	Logger      zerolog.Logger
	Metrics     *middleware.Metrics

	Authenticator *pass.Authenticator
	Passes        handler.Issuer
	Registrations *registration.Service
	Cards         handler.CardLookup
	Generator     handler.Generator
	Updates       handler.Updater

	// DB and Upstreams feed the readiness probe; both may be nil.
	DB        handler.Pinger
	Upstreams handler.UpstreamHealth

	RequireTLS         bool
	RateLimitPerMinute int
	APIKey             string
	CORSAllowedOrigins []string
}

// NewRouter creates the chi router with every route configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "walletsync-api"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing(serviceName))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.RequireTLS(cfg.RequireTLS))

	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.DB, cfg.Upstreams)
	walletHandler := handler.NewWalletHandler(cfg.Authenticator, cfg.Registrations, cfg.Generator, cfg.Logger)
	notifyHandler := handler.NewNotifyHandler(cfg.Updates, cfg.Logger)
	issueHandler := handler.NewIssueHandler(cfg.Cards, cfg.Passes, cfg.Generator, cfg.Logger)

	requireKey := middleware.RequireAPIKey(cfg.APIKey)
	keyRateLimit := middleware.RateLimitByKey(cfg.RateLimitPerMinute)

	r.Get("/health", opsHandler.HealthCheck)
	r.Get("/ready", opsHandler.ReadinessCheck)

	// Wallet web service protocol
	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.RateLimitByIP(cfg.RateLimitPerMinute))

		r.Route("/devices/{device}/registrations/{passType}", func(r chi.Router) {
			r.Get("/", walletHandler.ListUpdatedPasses)
			r.Post("/{serial}", walletHandler.RegisterDevice)
			r.Delete("/{serial}", walletHandler.UnregisterDevice)
		})
		r.Get("/passes/{passType}/{serial}", walletHandler.GetPass)
		r.Post("/log", walletHandler.Log)
	})

	// Internal triggers
	r.With(requireKey, keyRateLimit).Post("/notify-update", notifyHandler.NotifyUpdate)

	r.Route("/api", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.CORSAllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", middleware.APIKeyHeader},
			ExposedHeaders: []string{"X-Request-Id", "Content-Disposition"},
			MaxAge:         300,
		}))
		r.Use(requireKey, keyRateLimit)

		r.Post("/passes", issueHandler.IssuePass)
		r.Get("/passes/{serial}", issueHandler.GetPassMetadata)
		r.Post("/webhook/pass-changed", notifyHandler.PassChanged)
	})

	return r
}
