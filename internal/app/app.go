// Package app assembles the service graph shared by the API and the worker.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/loyaltywallet/walletsync/internal/assets"
	"github.com/loyaltywallet/walletsync/internal/config"
	"github.com/loyaltywallet/walletsync/internal/database"
	"github.com/loyaltywallet/walletsync/internal/loyalty"
	"github.com/loyaltywallet/walletsync/internal/pass"
	"github.com/loyaltywallet/walletsync/internal/passgen"
	"github.com/loyaltywallet/walletsync/internal/pkpass"
	"github.com/loyaltywallet/walletsync/internal/provider/resilience"
	"github.com/loyaltywallet/walletsync/internal/push"
	"github.com/loyaltywallet/walletsync/internal/push/apns"
	"github.com/loyaltywallet/walletsync/internal/registration"
	"github.com/loyaltywallet/walletsync/internal/update"
)

// NewLogger creates the process logger. LOG_FORMAT=console switches to
// human readable output.
func NewLogger(cfg *config.Config, service, version string) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if cfg.LogFormat == "console" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout})
	} else {
		logger = zerolog.New(os.Stdout)
	}

	return logger.Level(level).
		With().
		Timestamp().
		Str("service", service).
		Str("version", version).
		Logger()
}

// Services is the wired domain layer.
type Services struct {
	Pool          *pgxpool.Pool
	Passes        *pass.Service
	Authenticator *pass.Authenticator
	Registrations *registration.Service
	Cards         loyalty.Repository
	Generator     *passgen.Generator
	Dispatcher    *push.Dispatcher
	Updates       *update.Service
	Upstreams     *resilience.Registry

	apns *apns.Client
}

// Stores are the repositories Services is built on.
type Stores struct {
	Passes        pass.Repository
	Registrations registration.Repository
	Loyalty       loyalty.Repository
}

// PostgresStores returns repositories backed by pool.
func PostgresStores(pool *pgxpool.Pool) Stores {
	return Stores{
		Passes:        pass.NewPostgresRepository(pool),
		Registrations: registration.NewPostgresRepository(pool),
		Loyalty:       loyalty.NewPostgresRepository(pool),
	}
}

// Connect opens the database, applies the schema when configured and builds
// Services on top of it.
func Connect(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Services, error) {
	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	logger.Info().
		Str("host", cfg.Database.Host).
		Int("port", cfg.Database.Port).
		Str("database", cfg.Database.Database).
		Msg("database connected")

	if cfg.AutoMigrate {
		if err := database.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		logger.Info().Msg("database schema applied")
	}

	svc, err := New(cfg, PostgresStores(pool), logger)
	if err != nil {
		pool.Close()
		return nil, err
	}
	svc.Pool = pool
	return svc, nil
}

// New builds Services over stores. Missing push credentials leave the
// dispatcher unconfigured instead of failing, so passes are still served.
func New(cfg *config.Config, stores Stores, logger zerolog.Logger) (*Services, error) {
	upstreams := resilience.NewRegistry()

	signer, err := pkpass.LoadSigner(pkpass.CertSource{
		Dir:             cfg.Certs.Dir,
		WWDRBase64:      cfg.Certs.WWDRBase64,
		SignerBase64:    cfg.Certs.SignerBase64,
		SignerKeyBase64: cfg.Certs.SignerKeyBase64,
	})
	if err != nil {
		return nil, fmt.Errorf("load pass signing certificates: %w", err)
	}

	assetClient := resilience.NewClient(resilience.ClientConfig{
		Name:    "assets",
		Timeout: cfg.Assets.FetchTimeout,
	})
	upstreams.Register(assetClient)

	passes := pass.NewService(stores.Passes, cfg.Pass.TypeIdentifier)
	registrations := registration.NewService(stores.Registrations)

	generator := passgen.NewGenerator(passgen.Config{
		TeamIdentifier:   cfg.Pass.TeamIdentifier,
		OrganizationName: cfg.Pass.OrganizationName,
		WebServiceURL:    cfg.Pass.BaseURL,
		Loyalty:          stores.Loyalty,
		Workspaces:       newAllocator(cfg.Assets),
		Fetcher:          assets.NewFetcher(assetClient, cfg.Assets.FetchTimeout),
		Builder:          pkpass.NewBuilder(signer),
		Logger:           logger,
	})

	svc := &Services{
		Passes:        passes,
		Authenticator: pass.NewAuthenticator(stores.Passes, logger),
		Registrations: registrations,
		Cards:         stores.Loyalty,
		Generator:     generator,
		Upstreams:     upstreams,
	}

	var sender push.Sender
	if cfg.APNs.Configured() {
		client, err := apns.New(apns.Config{
			KeyID:      cfg.APNs.KeyID,
			TeamID:     cfg.APNs.TeamID,
			Key:        cfg.APNs.Key,
			Production: cfg.APNs.Production,
			Timeout:    cfg.APNs.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("configure apns: %w", err)
		}
		upstreams.Register(client.Resilient())
		svc.apns = client
		sender = client
		logger.Info().Bool("production", cfg.APNs.Production).Msg("apns client initialized")
	} else {
		logger.Warn().Msg("apns credentials not set, change notifications will fail")
	}

	dispatcher, err := push.NewDispatcher(push.Config{
		Sender:        sender,
		Registry:      registrations,
		Topic:         cfg.Pass.TypeIdentifier,
		Logger:        logger,
		Concurrency:   cfg.APNs.Concurrency,
		Timeout:       cfg.APNs.Timeout,
		RatePerSecond: cfg.APNs.RatePerSecond,
	})
	if err != nil {
		return nil, err
	}
	svc.Dispatcher = dispatcher
	svc.Updates = update.NewService(passes, registrations, dispatcher, logger)

	return svc, nil
}

func newAllocator(cfg config.AssetConfig) assets.Allocator {
	if cfg.Isolation == config.IsolationShared {
		return assets.NewSharedAllocator(cfg.TemplateDir, filepath.Join(cfg.WorkDir, "walletsync-shared"), assets.NewKeyedMutex())
	}
	return assets.NewPrivateAllocator(cfg.TemplateDir, cfg.WorkDir)
}

// Close releases the push connections and the database pool.
func (s *Services) Close() {
	if s.apns != nil {
		s.apns.Close()
	}
	if s.Pool != nil {
		s.Pool.Close()
	}
}
