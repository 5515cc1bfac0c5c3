package database_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/loyaltywallet/walletsync/internal/database"
)

func TestConnectionString(t *testing.T) {
	cfg := database.Config{
		Host: "db", Port: 5433, User: "u", Password: "p", Database: "wallet", SSLMode: "require",
	}
	assert.Equal(t, "postgres://u:p@db:5433/wallet?sslmode=require", cfg.ConnectionString())

	cfg.URL = "postgres://override/x"
	assert.Equal(t, "postgres://override/x", cfg.ConnectionString())
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_HOST", "pg.internal")
	t.Setenv("DB_PORT", "6000")

	cfg := database.ConfigFromEnv()

	assert.Equal(t, "pg.internal", cfg.Host)
	assert.Equal(t, 6000, cfg.Port)
	assert.Equal(t, "walletsync", cfg.Database)
}
