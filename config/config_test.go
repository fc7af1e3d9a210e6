package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/contract-engine/config"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := config.Load()

	require.NoError(t, err)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, config.DriverSQLite, cfg.Store.Driver)
	assert.Equal(t, "contracts.db", cfg.Store.SQLitePath)
	assert.Empty(t, cfg.PolicyFile)
	assert.Equal(t, "0.0.0.0:8080", cfg.Addr())
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("APP_ENV", "production")
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("STORE_DRIVER", "Postgres")
	t.Setenv("DB_DSN", "postgres://localhost/contracts")
	t.Setenv("ENGINE_POLICY_FILE", "/etc/engine/policy.json")

	cfg, err := config.Load()

	require.NoError(t, err)
	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, 9090, cfg.HTTP.Port)
	assert.Equal(t, config.DriverPostgres, cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/contracts", cfg.Store.DSN)
	assert.Equal(t, "/etc/engine/policy.json", cfg.PolicyFile)
}

func TestLoad_PostgresRequiresDSN(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("DB_DSN", "")

	_, err := config.Load()

	assert.ErrorContains(t, err, "DB_DSN")
}

func TestLoad_UnknownDriver(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("STORE_DRIVER", "mongo")

	_, err := config.Load()

	assert.ErrorContains(t, err, "STORE_DRIVER")
}
