package clickhouse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"localhost:9000"}, cfg.Addresses)
	assert.Equal(t, "default", cfg.Database)
	assert.Equal(t, "default", cfg.Username)
	assert.Equal(t, 60, cfg.MaxExecutionTime)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("CLICKHOUSE_ADDRESSES", "ch-1:9000,ch-2:9000")
	t.Setenv("CLICKHOUSE_DATABASE", "indexer")
	t.Setenv("CLICKHOUSE_MAX_OPEN_CONNS", "20")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"ch-1:9000", "ch-2:9000"}, cfg.Addresses)
	assert.Equal(t, "indexer", cfg.Database)
	assert.Equal(t, 20, cfg.MaxOpenConns)
}
