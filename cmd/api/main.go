package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/loyaltywallet/walletsync/internal/api"
	"github.com/loyaltywallet/walletsync/internal/api/middleware"
	"github.com/loyaltywallet/walletsync/internal/app"
	"github.com/loyaltywallet/walletsync/internal/config"
	"github.com/loyaltywallet/walletsync/internal/telemetry"
)

// Version and BuildTime are set at compile time via ldflags
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "walletsync-api"

	_ = godotenv.Load()
	cfg := config.Load()
	if cfg.Version != "" && Version == "dev" {
		Version = cfg.Version
	}

	log := app.NewLogger(cfg, serviceName, Version)
	log.Info().
		Str("build_time", BuildTime).
		Str("environment", cfg.Environment).
		Msg("starting wallet pass service")

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx := context.Background()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		Enabled:        cfg.Telemetry.Enabled,
		SampleRatio:    cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if cfg.Telemetry.Enabled {
		log.Info().
			Str("otlp_endpoint", cfg.Telemetry.OTLPEndpoint).
			Msg("OpenTelemetry initialized")
	}

	metrics, err := middleware.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}

	svc, err := app.Connect(ctx, cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize services")
		os.Exit(1)
	}
	defer svc.Close()

	router := api.NewRouter(api.RouterConfig{
		Version:            Version,
		ServiceName:        serviceName,
		Logger:             log,
		Metrics:            metrics,
		Authenticator:      svc.Authenticator,
		Passes:             svc.Passes,
		Registrations:      svc.Registrations,
		Cards:              svc.Cards,
		Generator:          svc.Generator,
		Updates:            svc.Updates,
		DB:                 svc.Pool,
		Upstreams:          svc.Upstreams,
		RequireTLS:         cfg.RequireTLS,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		APIKey:             cfg.NotifyAPIKey,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	})

	if cfg.NotifyAPIKey == "" {
		log.Warn().Msg("NOTIFY_API_KEY not set, internal trigger endpoints are unauthenticated")
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
