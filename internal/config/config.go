// Package config loads process configuration from the environment.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/loyaltywallet/walletsync/internal/database"
)

// Isolation modes for the regeneration working area.
const (
	IsolationPrivate = "private"
	IsolationShared  = "shared"
)

// Config holds all runtime configuration.
type Config struct {
	Port        string
	Environment string
	Version     string
	LogLevel    string
	LogFormat   string

	Pass      PassConfig
	Assets    AssetConfig
	Certs     CertConfig
	APNs      APNsConfig
	Database  database.Config
	Telemetry TelemetryConfig
	PubSub    PubSubConfig

	NotifyAPIKey       string
	CORSAllowedOrigins []string
	RateLimitPerMinute int
	RequireTLS         bool
	AutoMigrate        bool
}

// PassConfig holds the identity every issued pass shares.
type PassConfig struct {
	TypeIdentifier   string
	TeamIdentifier   string
	OrganizationName string
	BaseURL          string
}

// AssetConfig controls where regenerations assemble their images.
type AssetConfig struct {
	TemplateDir  string
	WorkDir      string
	Isolation    string
	FetchTimeout time.Duration
}

// CertConfig locates the pass signing material. Base64 values take
// precedence over files in Dir.
type CertConfig struct {
	Dir             string
	WWDRBase64      string
	SignerBase64    string
	SignerKeyBase64 string
}

// APNsConfig holds push provider credentials.
type APNsConfig struct {
	KeyID         string
	TeamID        string
	Key           string
	Production    bool
	Concurrency   int
	Timeout       time.Duration
	RatePerSecond float64
}

// Configured reports whether any push credential was supplied.
func (c APNsConfig) Configured() bool {
	return c.KeyID != "" || c.Key != ""
}

// TelemetryConfig controls OpenTelemetry export.
type TelemetryConfig struct {
	Enabled      bool
	OTLPEndpoint string
	SampleRatio  float64
}

// PubSubConfig is consumed by the worker.
type PubSubConfig struct {
	ProjectID    string
	Subscription string
}

// Load reads configuration from environment variables.
func Load() *Config {
	env := getEnv("ENVIRONMENT", "development")
	teamID := getEnv("TEAM_IDENTIFIER", "")

	return &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: env,
		Version:     getEnv("VERSION", ""),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFormat:   getEnv("LOG_FORMAT", "json"),
		Pass: PassConfig{
			TypeIdentifier:   getEnv("PASS_TYPE_IDENTIFIER", ""),
			TeamIdentifier:   teamID,
			OrganizationName: getEnv("ORGANIZATION_NAME", "Loyalty"),
			BaseURL:          strings.TrimRight(getEnv("BASE_URL", ""), "/"),
		},
		Assets: AssetConfig{
			TemplateDir:  getEnv("PASS_TEMPLATE_DIR", "./templates/loyalty.pass"),
			WorkDir:      getEnv("ASSET_WORK_DIR", os.TempDir()),
			Isolation:    getEnv("ASSET_ISOLATION", IsolationPrivate),
			FetchTimeout: getEnvDuration("ASSET_FETCH_TIMEOUT", 10*time.Second),
		},
		Certs: CertConfig{
			Dir:             getEnv("CERT_DIR", "./certs"),
			WWDRBase64:      getEnv("CERT_WWDR", ""),
			SignerBase64:    getEnv("CERT_SIGNER", ""),
			SignerKeyBase64: getEnv("CERT_SIGNER_KEY", ""),
		},
		APNs: APNsConfig{
			KeyID:         getEnv("APPLE_APNS_KEY_ID", ""),
			TeamID:        getEnv("APNS_TEAM_ID", teamID),
			Key:           getEnv("APPLE_APNS_KEY", ""),
			Production:    getEnvBool("APNS_PRODUCTION", env == "production"),
			Concurrency:   getEnvInt("PUSH_CONCURRENCY", 8),
			Timeout:       getEnvDuration("PUSH_TIMEOUT", 10*time.Second),
			RatePerSecond: getEnvFloat("PUSH_RATE_PER_SECOND", 0),
		},
		Database: database.ConfigFromEnv(),
		Telemetry: TelemetryConfig{
			Enabled:      getEnvBool("OTEL_ENABLED", false),
			OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			SampleRatio:  getEnvFloat("OTEL_TRACES_SAMPLE_RATIO", 1),
		},
		PubSub: PubSubConfig{
			ProjectID:    getEnv("PUBSUB_PROJECT_ID", ""),
			Subscription: getEnv("PUBSUB_SUBSCRIPTION", "pass-changed"),
		},
		NotifyAPIKey:       getEnv("NOTIFY_API_KEY", ""),
		CORSAllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 120),
		RequireTLS:         getEnvBool("REQUIRE_TLS", false),
		AutoMigrate:        getEnvBool("DB_AUTO_MIGRATE", false),
	}
}

// Validate checks the settings the API process cannot run without.
func (c *Config) Validate() error {
	var errs []error
	if c.Pass.TypeIdentifier == "" {
		errs = append(errs, errors.New("PASS_TYPE_IDENTIFIER is required"))
	}
	if c.Pass.TeamIdentifier == "" {
		errs = append(errs, errors.New("TEAM_IDENTIFIER is required"))
	}
	if c.Pass.BaseURL == "" {
		errs = append(errs, errors.New("BASE_URL is required"))
	}
	if c.Assets.Isolation != IsolationPrivate && c.Assets.Isolation != IsolationShared {
		errs = append(errs, errors.New("ASSET_ISOLATION must be private or shared"))
	}
	return errors.Join(errs...)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
