package config

import (
	"os"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	viper.Reset()

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "1", cfg.Version)
	assert.Equal(t, "scenarios", cfg.ScenarioDir)
	assert.Equal(t, "postgresql", cfg.Database.Provider)
	assert.Equal(t, "DATABASE_URL", cfg.Database.URLEnv)
}

func TestLoadFromViper(t *testing.T) {
	viper.Reset()
	viper.Set("database.provider", "clickhouse")
	viper.Set("database.url_env", "CLICKHOUSE_URL")
	viper.Set("run.batch_size", 5000)
	defer viper.Reset()

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "clickhouse", cfg.Database.Provider)
	assert.Equal(t, "CLICKHOUSE_URL", cfg.Database.URLEnv)
	assert.Equal(t, int64(5000), cfg.Run.BatchSize)
}

func TestValidate(t *testing.T) {
	for _, provider := range []string{"postgresql", "postgres", "clickhouse", "duckdb", "trino", "iceberg"} {
		cfg := &Config{Database: Database{Provider: provider}}
		assert.NoError(t, cfg.Validate(), provider)
	}

	cfg := &Config{Database: Database{Provider: "mysql"}}
	assert.ErrorContains(t, cfg.Validate(), "unsupported database provider")

	cfg = &Config{Database: Database{Provider: "duckdb"}, Run: Run{BatchSize: -1}}
	assert.ErrorContains(t, cfg.Validate(), "batch_size")
}

func TestGetDatabaseURL(t *testing.T) {
	cfg := &Config{Database: Database{URLEnv: "FABRICA_TEST_DB_URL"}}

	os.Unsetenv("FABRICA_TEST_DB_URL")
	_, err := cfg.GetDatabaseURL()
	assert.ErrorContains(t, err, "FABRICA_TEST_DB_URL")

	t.Setenv("FABRICA_TEST_DB_URL", "postgres://localhost/x")
	url, err := cfg.GetDatabaseURL()
	require.NoError(t, err)
	assert.Equal(t, "postgres://localhost/x", url)
}
