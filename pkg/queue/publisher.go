package queue

import "context"

// Message is a queue message. Key selects the partition when the backend
// supports partitioning.
type Message struct {
	Topic string
	Key   []byte
	Value []byte
}

// Publisher publishes messages to a durable queue.
type Publisher interface {
	// Publish delivers a message. Implementations may block until delivery
	// is confirmed.
	Publish(ctx context.Context, msg Message) error

	// Close stops the publisher and flushes in-flight messages. It must be
	// called exactly once; canceling the context may lose messages.
	Close(ctx context.Context)
}
