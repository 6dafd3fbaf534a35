package checkpointer

import "time"

// Config holds the configuration for the checkpoint writer.
type Config struct {
	Interval     time.Duration // Interval between checkpoint writes
	WriteTimeout time.Duration // Per-attempt timeout for a checkpoint write
	MaxAttempts  uint64        // Attempt budget for each write
	RetryBase    time.Duration // Base delay of the write retry backoff
	RetryMax     time.Duration // Upper bound of the write retry backoff
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval:     30 * time.Second,
		WriteTimeout: time.Second,
		MaxAttempts:  4,
		RetryBase:    300 * time.Millisecond,
		RetryMax:     5 * time.Second,
	}
}
