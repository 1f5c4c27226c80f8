// Package kafka provides a Kafka-backed durable queue for the event
// bus using github.com/segmentio/kafka-go. Each job type maps to its
// own topic; consumers feed deliveries back into the bus.
package kafka

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/AshkanYarmoradi/go-strand/adapters"
)

var _ adapters.Queue = (*Queue)(nil)

// Header keys carried on produced messages so consumers can honor the
// requested redelivery policy.
const (
	HeaderAttempts     = "strand-attempts"
	HeaderBackoffType  = "strand-backoff-type"
	HeaderBackoffDelay = "strand-backoff-delay-ms"
)

// Queue produces queue jobs to Kafka topics. Durability and
// at-least-once delivery come from the broker; the enqueue options are
// carried as message headers for the consumer to apply on handler
// failure.
type Queue struct {
	brokers      []string
	topicPrefix  string
	balancer     kafkago.Balancer
	batchTimeout time.Duration
	transport    kafkago.RoundTripper

	mu      sync.RWMutex
	writers map[string]*kafkago.Writer
	closed  bool
}

// Option configures a Queue.
type Option func(*Queue)

// WithBrokers sets the Kafka broker addresses.
func WithBrokers(brokers ...string) Option {
	return func(q *Queue) {
		q.brokers = brokers
	}
}

// WithTopicPrefix sets the prefix prepended to job types to form topic
// names. Defaults to "strand.".
func WithTopicPrefix(prefix string) Option {
	return func(q *Queue) {
		q.topicPrefix = prefix
	}
}

// WithBalancer sets the message balancer (partitioner).
func WithBalancer(balancer kafkago.Balancer) Option {
	return func(q *Queue) {
		q.balancer = balancer
	}
}

// WithBatchTimeout sets the batch timeout for the writers.
func WithBatchTimeout(d time.Duration) Option {
	return func(q *Queue) {
		q.batchTimeout = d
	}
}

// WithTransport sets a custom transport, mainly for tests.
func WithTransport(transport kafkago.RoundTripper) Option {
	return func(q *Queue) {
		q.transport = transport
	}
}

// New creates a new Kafka Queue.
func New(opts ...Option) *Queue {
	q := &Queue{
		brokers:      []string{"localhost:9092"},
		topicPrefix:  "strand.",
		balancer:     &kafkago.LeastBytes{},
		batchTimeout: 10 * time.Millisecond,
		writers:      make(map[string]*kafkago.Writer),
	}

	for _, opt := range opts {
		opt(q)
	}

	return q
}

// Enqueue produces the payload to the job type's topic. The retry
// policy travels as headers for the consumer side.
func (q *Queue) Enqueue(ctx context.Context, jobType string, payload []byte, opts adapters.EnqueueOptions) error {
	if jobType == "" {
		return fmt.Errorf("strand/kafka: job type is required")
	}

	q.mu.RLock()
	closed := q.closed
	q.mu.RUnlock()
	if closed {
		return fmt.Errorf("strand/kafka: queue is closed")
	}

	msg := kafkago.Message{
		Value: payload,
		Headers: []kafkago.Header{
			{Key: HeaderAttempts, Value: []byte(strconv.Itoa(opts.Attempts))},
			{Key: HeaderBackoffType, Value: []byte(opts.Backoff.Type)},
			{Key: HeaderBackoffDelay, Value: []byte(strconv.FormatInt(opts.Backoff.Delay.Milliseconds(), 10))},
		},
	}

	writer := q.getWriter(q.topicPrefix + jobType)
	if err := writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("strand/kafka: failed to write to topic %s: %w", q.topicPrefix+jobType, err)
	}

	return nil
}

// Close closes all writers.
func (q *Queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	for topic, w := range q.writers {
		if err := w.Close(); err != nil {
			return err
		}
		delete(q.writers, topic)
	}
	return nil
}

// getWriter returns or creates a writer for the given topic.
func (q *Queue) getWriter(topic string) *kafkago.Writer {
	q.mu.RLock()
	if w, ok := q.writers[topic]; ok {
		q.mu.RUnlock()
		return w
	}
	q.mu.RUnlock()

	q.mu.Lock()
	defer q.mu.Unlock()

	// Double-check after acquiring write lock
	if w, ok := q.writers[topic]; ok {
		return w
	}

	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(q.brokers...),
		Topic:                  topic,
		Balancer:               q.balancer,
		BatchTimeout:           q.batchTimeout,
		Transport:              q.transport,
		AllowAutoTopicCreation: true,
	}

	q.writers[topic] = w
	return w
}
