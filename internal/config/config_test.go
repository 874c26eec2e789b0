package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 10, cfg.VoteBatchSize)
	assert.Equal(t, time.Second, cfg.VoteProcessInterval)
	assert.Equal(t, 5*time.Second, cfg.ResultsCacheTTL)
	assert.Equal(t, 30*time.Second, cfg.KeepAliveInterval)
	assert.Equal(t, CacheBackendRedis, cfg.ResultsCacheBackend)
	assert.True(t, cfg.WorkerEnabled)
	assert.False(t, cfg.ResultsInvalidateOnChange)
	assert.Equal(t, "0.0.0.0:8080", cfg.Addr())
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("VOTE_QUEUE_BATCH_SIZE", "25")
	t.Setenv("VOTE_PROCESS_INTERVAL", "250")
	t.Setenv("RESULTS_CACHE_TTL", "2s")
	t.Setenv("RESULTS_CACHE_BACKEND", "LOCAL")
	t.Setenv("RESULTS_INVALIDATE_ON_CHANGE", "true")
	t.Setenv("WORKER_ENABLED", "false")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, 25, cfg.VoteBatchSize)
	assert.Equal(t, 250*time.Millisecond, cfg.VoteProcessInterval)
	assert.Equal(t, 2*time.Second, cfg.ResultsCacheTTL)
	assert.Equal(t, CacheBackendLocal, cfg.ResultsCacheBackend)
	assert.True(t, cfg.ResultsInvalidateOnChange)
	assert.False(t, cfg.WorkerEnabled)
}

func TestFromEnvRejectsBadValues(t *testing.T) {
	t.Setenv("PORT", "eighty")
	_, err := FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PORT")
}

func TestFromEnvRejectsUnknownCacheBackend(t *testing.T) {
	t.Setenv("RESULTS_CACHE_BACKEND", "memcached")
	_, err := FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RESULTS_CACHE_BACKEND")
}

func TestFromEnvRejectsNonPositiveBatch(t *testing.T) {
	t.Setenv("VOTE_QUEUE_BATCH_SIZE", "0")
	_, err := FromEnv()
	require.Error(t, err)
}
