// Package kafka holds the producer-side Kafka configuration for the indexer.
package kafka

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	confluent "github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

// ProducerConfig holds the configuration for the Kafka producer.
type ProducerConfig struct {
	BootstrapServers string `env:"KAFKA_BOOTSTRAP_SERVERS" envDefault:"localhost:9092"` // Kafka broker addresses
	ClientID         string `env:"KAFKA_CLIENT_ID"         envDefault:"chain-indexer"`  // Client ID reported to the brokers
	Topic            string `env:"KAFKA_TOPIC"             envDefault:"headers"`        // Topic headers are published to
	LingerMs         int    `env:"KAFKA_LINGER_MS"         envDefault:"5"`              // Batching delay in milliseconds
	BatchSize        int    `env:"KAFKA_BATCH_SIZE"        envDefault:"16384"`          // Batch size in bytes
	CompressionType  string `env:"KAFKA_COMPRESSION_TYPE"  envDefault:"lz4"`            // Message compression codec
}

// LoadProducerConfig loads the producer configuration from environment
// variables.
func LoadProducerConfig() (ProducerConfig, error) {
	var cfg ProducerConfig
	if err := env.Parse(&cfg); err != nil {
		return ProducerConfig{}, fmt.Errorf("failed to parse kafka producer config: %w", err)
	}
	return cfg, nil
}

// ConfigMap translates the configuration into librdkafka settings. Acks from
// all replicas and idempotence are always on: the indexer prefers duplicate
// delivery over loss.
func (c ProducerConfig) ConfigMap() *confluent.ConfigMap {
	return &confluent.ConfigMap{
		"bootstrap.servers":  c.BootstrapServers,
		"client.id":          c.ClientID,
		"acks":               "all",
		"enable.idempotence": true,
		"linger.ms":          c.LingerMs,
		"batch.size":         c.BatchSize,
		"compression.type":   c.CompressionType,
	}
}
