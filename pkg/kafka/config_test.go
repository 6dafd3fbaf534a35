package kafka

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadProducerConfigDefaults(t *testing.T) {
	cfg, err := LoadProducerConfig()
	require.NoError(t, err)
	assert.Equal(t, "localhost:9092", cfg.BootstrapServers)
	assert.Equal(t, "chain-indexer", cfg.ClientID)
	assert.Equal(t, "headers", cfg.Topic)
	assert.Equal(t, 5, cfg.LingerMs)
}

func TestLoadProducerConfigFromEnv(t *testing.T) {
	t.Setenv("KAFKA_BOOTSTRAP_SERVERS", "broker-1:9092,broker-2:9092")
	t.Setenv("KAFKA_TOPIC", "mainnet-headers")

	cfg, err := LoadProducerConfig()
	require.NoError(t, err)
	assert.Equal(t, "broker-1:9092,broker-2:9092", cfg.BootstrapServers)
	assert.Equal(t, "mainnet-headers", cfg.Topic)
}

func TestConfigMapAlwaysIdempotent(t *testing.T) {
	cfg, err := LoadProducerConfig()
	require.NoError(t, err)

	cm := cfg.ConfigMap()
	acks, err := cm.Get("acks", "")
	require.NoError(t, err)
	assert.Equal(t, "all", acks)

	idempotent, err := cm.Get("enable.idempotence", false)
	require.NoError(t, err)
	assert.Equal(t, true, idempotent)
}
