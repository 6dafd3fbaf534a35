package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	confluent "github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"go.uber.org/zap"

	"github.com/graphops/chain-indexer/pkg/retry"
)

const flushTimeoutMs = 10000

// KafkaPublisher is a synchronous Kafka implementation of Publisher. Publish
// blocks until Kafka confirms delivery. A background goroutine watches the
// producer's event stream for fatal errors.
type KafkaPublisher struct {
	producer *confluent.Producer
	log      *zap.SugaredLogger
	enqueue  *retry.Runner[struct{}]

	errCh      chan error
	eventsDone chan struct{}
	closedCh   chan struct{}
	once       sync.Once
}

var _ Publisher = (*KafkaPublisher)(nil)

// NewKafkaPublisher creates a Kafka-backed Publisher. The context bounds the
// lifetime of the event-monitoring goroutine; callers must still call Close
// to flush and release the producer.
func NewKafkaPublisher(ctx context.Context, conf *confluent.ConfigMap, log *zap.SugaredLogger) (*KafkaPublisher, error) {
	p, err := confluent.NewProducer(conf)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	// A full local queue is the one producer error worth waiting out; every
	// other produce error is terminal for the message.
	enqueue := retry.Retry[struct{}]("enqueue kafka message", log).
		When(func(_ struct{}, err error) bool {
			var kerr confluent.Error
			return errors.As(err, &kerr) && kerr.Code() == confluent.ErrQueueFull
		}).
		LogAfter(3).
		NoLimit().
		NoTimeout().
		WithBackoff(retry.Backoff{
			Base:     50 * time.Millisecond,
			Growth:   2,
			MaxDelay: time.Second,
		})

	kp := &KafkaPublisher{
		producer:   p,
		log:        log,
		enqueue:    enqueue,
		errCh:      make(chan error, 1),
		eventsDone: make(chan struct{}),
		closedCh:   make(chan struct{}),
	}
	go kp.monitorEvents(ctx)

	return kp, nil
}

// Publish synchronously publishes a message and waits for the delivery
// receipt. If the context is canceled before confirmation, the message may
// still be delivered later; callers retrying must tolerate duplicates.
func (q *KafkaPublisher) Publish(ctx context.Context, msg Message) error {
	deliveryCh := make(chan confluent.Event, 1)

	kMsg := &confluent.Message{
		TopicPartition: confluent.TopicPartition{
			Topic:     &msg.Topic,
			Partition: confluent.PartitionAny,
		},
		Key:   msg.Key,
		Value: msg.Value,
	}

	_, err := q.enqueue.Run(ctx, func(context.Context) (struct{}, error) {
		return struct{}{}, q.producer.Produce(kMsg, deliveryCh)
	})
	if err != nil {
		return fmt.Errorf("failed to produce: %w", err)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case e := <-deliveryCh:
		return q.handleDelivery(kMsg, e)
	}
}

// Errors returns a channel carrying at most one fatal producer error; it is
// closed on shutdown. After a fatal error the publisher is unusable and must
// be Closed and recreated.
func (q *KafkaPublisher) Errors() <-chan error {
	return q.errCh
}

// Close stops the event monitor and flushes pending messages, blocking until
// delivery or until ctx is canceled. Safe to call more than once; only the
// first call does anything.
func (q *KafkaPublisher) Close(ctx context.Context) {
	q.once.Do(func() {
		q.log.Info("closing kafka publisher")
		defer close(q.errCh)

		close(q.closedCh)
		<-q.eventsDone

		for q.producer.Flush(flushTimeoutMs) > 0 {
			q.log.Warn("producer queue not flushed, retrying")
			if ctx.Err() != nil {
				q.log.Warn("context done, abandoning producer flush")
				break
			}
		}

		q.producer.Close()
		q.log.Info("kafka publisher closed")
	})
}

func (q *KafkaPublisher) handleDelivery(msg *confluent.Message, ev confluent.Event) error {
	switch e := ev.(type) {
	case *confluent.Message:
		if err := e.TopicPartition.Error; err != nil {
			return fmt.Errorf("delivery failed: %w", err)
		}
		q.log.Debugw("message delivered",
			"topic", *msg.TopicPartition.Topic,
			"partition", e.TopicPartition.Partition,
			"offset", e.TopicPartition.Offset,
		)
		return nil
	case confluent.Error:
		return fmt.Errorf("kafka error: code=%d fatal=%t: %w", e.Code(), e.IsFatal(), e)
	default:
		return fmt.Errorf("unexpected delivery event: %T", ev)
	}
}

// monitorEvents drains the producer's global event channel. Delivery
// receipts land on per-message channels, so anything here is either noise or
// a fatal producer error.
func (q *KafkaPublisher) monitorEvents(ctx context.Context) {
	defer close(q.eventsDone)
	for {
		select {
		case <-ctx.Done():
			return
		case <-q.closedCh:
			return
		case ev, ok := <-q.producer.Events():
			if !ok {
				q.reportFatal(errors.New("kafka producer event channel closed"))
				return
			}
			switch e := ev.(type) {
			case confluent.Error:
				if e.IsFatal() || e.Code() == confluent.ErrAllBrokersDown {
					q.reportFatal(fmt.Errorf("fatal kafka error: code=%d: %w", e.Code(), e))
					return
				}
				q.log.Warnw("ignoring non-fatal kafka error", "code", e.Code(), "error", e)
			default:
				q.log.Debugw("ignoring kafka event", "event", fmt.Sprintf("%v", e))
			}
		}
	}
}

func (q *KafkaPublisher) reportFatal(err error) {
	select {
	case q.errCh <- err:
	default:
		q.log.Warnw("dropping fatal error, channel full", "error", err)
	}
}
