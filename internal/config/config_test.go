package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	t.Parallel()

	cfg := Default()
	assert.Equal(t, DefaultWorkerPort, cfg.WorkerPort)
	assert.Equal(t, "sqlite", cfg.StoreBackend)
	assert.Equal(t, DefaultEmbeddingModel, cfg.Embedding.Model)
	assert.Equal(t, DefaultEmbeddingDimensions, cfg.Embedding.Dimensions)
	assert.InDelta(t, DefaultClusterThreshold, cfg.ClusterThreshold, 1e-12)
	assert.InDelta(t, DefaultDuplicateThreshold, cfg.DuplicateThreshold, 1e-12)
	assert.InDelta(t, DefaultMinMatchScore, cfg.MinMatchScore, 1e-12)
	assert.Equal(t, 50, cfg.MaxGroups)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("COHORT_WORKER_PORT", "9999")
	t.Setenv("COHORT_STORE_BACKEND", "redis")
	t.Setenv("COHORT_REDIS_ADDR", "localhost:6380")
	t.Setenv("COHORT_EMBEDDING_MODEL", "text-embedding-3-large")
	t.Setenv("COHORT_EMBEDDING_DIMENSIONS", "3072")
	t.Setenv("COHORT_EMBEDDING_API_KEY", "test-key")

	cfg := Default()
	applyEnv(cfg)

	assert.Equal(t, 9999, cfg.WorkerPort)
	assert.Equal(t, "redis", cfg.StoreBackend)
	assert.Equal(t, "localhost:6380", cfg.RedisAddr)
	assert.Equal(t, "text-embedding-3-large", cfg.Embedding.Model)
	assert.Equal(t, 3072, cfg.Embedding.Dimensions)
	assert.Equal(t, "test-key", cfg.Embedding.APIKey)
}

func TestApplyEnv_InvalidValuesKeepDefaults(t *testing.T) {
	t.Setenv("COHORT_WORKER_PORT", "not-a-port")
	t.Setenv("COHORT_EMBEDDING_DIMENSIONS", "-5")

	cfg := Default()
	applyEnv(cfg)

	assert.Equal(t, DefaultWorkerPort, cfg.WorkerPort)
	assert.Equal(t, DefaultEmbeddingDimensions, cfg.Embedding.Dimensions)
}

func TestApplyEnv_OpenAIKeyFallback(t *testing.T) {
	t.Setenv("COHORT_EMBEDDING_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "fallback-key")

	cfg := Default()
	applyEnv(cfg)
	require.Equal(t, "fallback-key", cfg.Embedding.APIKey)
}
