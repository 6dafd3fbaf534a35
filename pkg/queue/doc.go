// Package queue provides the publishing abstraction the indexer uses to hand
// fetched headers to downstream consumers, plus a Kafka implementation.
//
// Publishers have explicit lifecycles: Close must be called exactly once to
// flush in-flight messages and release resources.
package queue
