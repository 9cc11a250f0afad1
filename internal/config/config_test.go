package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "testdata/does-not-exist.toml")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "briefly-cloud", cfg.App.Name)
	assert.Equal(t, 8080, cfg.App.Port)
	assert.Equal(t, "gpt-3.5-turbo", cfg.LLM.FreeModel)
	assert.Equal(t, "gpt-4-turbo", cfg.LLM.ProModel)
	assert.Equal(t, 1536, cfg.LLM.EmbeddingDimensions)
	assert.Equal(t, 5, cfg.Retrieval.TopK)
	assert.InDelta(t, 0.30, cfg.Retrieval.MinScore, 1e-9)
	assert.Equal(t, "paragraph", cfg.Ingest.Strategy)
	assert.Equal(t, 3, cfg.RabbitMQ.IngestWorkers)
}

func TestOverrideByEnv(t *testing.T) {
	t.Setenv("CONFIG_FILE", "testdata/does-not-exist.toml")

	t.Run("string and int overrides", func(t *testing.T) {
		t.Setenv("POSTGRES_HOST", "db.internal")
		t.Setenv("POSTGRES_PORT", "6543")
		t.Setenv("JWT_SECRET", "s3cret")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "db.internal", cfg.Postgres.Host)
		assert.Equal(t, 6543, cfg.Postgres.Port)
		assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
	})

	t.Run("invalid int falls back to default", func(t *testing.T) {
		t.Setenv("APP_PORT", "not-a-number")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, 8080, cfg.App.Port)
	})

	t.Run("float override", func(t *testing.T) {
		t.Setenv("RETRIEVAL_MIN_SCORE", "0.55")

		cfg, err := Load()
		require.NoError(t, err)
		assert.InDelta(t, 0.55, cfg.Retrieval.MinScore, 1e-9)
	})
}

func TestPostgresDSN(t *testing.T) {
	cfg := defaultConfig()
	cfg.Postgres.Password = "pw"

	dsn := cfg.PostgresDSN()
	assert.Contains(t, dsn, "host=127.0.0.1")
	assert.Contains(t, dsn, "port=5432")
	assert.Contains(t, dsn, "dbname=briefly_cloud")
	assert.Contains(t, dsn, "sslmode=disable")
}

func TestHTTPAddr(t *testing.T) {
	cfg := defaultConfig()
	assert.Equal(t, "0.0.0.0:8080", cfg.HTTPAddr())
}
