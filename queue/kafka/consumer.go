package kafka

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"
)

// DeliveryFunc handles one delivered job. Wire the bus's HandleQueued
// here.
type DeliveryFunc func(ctx context.Context, jobType string, payload []byte) error

// Consumer reads jobs from a job type's topic and delivers them,
// honoring the retry policy carried in the message headers. Delivery
// failures past the attempt budget are dropped with the commit, which
// keeps the partition moving; pair with a dead letter topic if loss is
// unacceptable.
type Consumer struct {
	jobType string
	reader  *kafkago.Reader
	deliver DeliveryFunc
}

// ConsumerOption configures a Consumer.
type ConsumerOption func(*consumerConfig)

type consumerConfig struct {
	brokers     []string
	topicPrefix string
	groupID     string
}

// WithConsumerBrokers sets the Kafka broker addresses.
func WithConsumerBrokers(brokers ...string) ConsumerOption {
	return func(c *consumerConfig) {
		c.brokers = brokers
	}
}

// WithConsumerTopicPrefix sets the topic prefix; must match the queue's.
func WithConsumerTopicPrefix(prefix string) ConsumerOption {
	return func(c *consumerConfig) {
		c.topicPrefix = prefix
	}
}

// WithGroupID sets the consumer group ID. Defaults to "strand-bus".
func WithGroupID(groupID string) ConsumerOption {
	return func(c *consumerConfig) {
		c.groupID = groupID
	}
}

// NewConsumer creates a Consumer for one job type.
func NewConsumer(jobType string, deliver DeliveryFunc, opts ...ConsumerOption) (*Consumer, error) {
	if jobType == "" {
		return nil, fmt.Errorf("strand/kafka: job type is required")
	}
	if deliver == nil {
		return nil, fmt.Errorf("strand/kafka: delivery function is required")
	}

	cfg := &consumerConfig{
		brokers:     []string{"localhost:9092"},
		topicPrefix: "strand.",
		groupID:     "strand-bus",
	}
	for _, opt := range opts {
		opt(cfg)
	}

	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers: cfg.brokers,
		Topic:   cfg.topicPrefix + jobType,
		GroupID: cfg.groupID,
	})

	return &Consumer{
		jobType: jobType,
		reader:  reader,
		deliver: deliver,
	}, nil
}

// Run consumes until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("strand/kafka: failed to fetch message: %w", err)
		}

		c.deliverWithRetry(ctx, msg)

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("strand/kafka: failed to commit message: %w", err)
		}
	}
}

// deliverWithRetry applies the attempt budget and backoff carried in
// the message headers.
func (c *Consumer) deliverWithRetry(ctx context.Context, msg kafkago.Message) {
	attempts, backoffType, delay := retryPolicy(msg)

	for attempt := 1; attempt <= attempts; attempt++ {
		if err := c.deliver(ctx, c.jobType, msg.Value); err == nil {
			return
		}
		if attempt == attempts {
			return
		}

		wait := delay
		if backoffType == "exponential" {
			wait = delay << (attempt - 1)
		}
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return
		}
	}
}

// Close closes the underlying reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}

func retryPolicy(msg kafkago.Message) (attempts int, backoffType string, delay time.Duration) {
	attempts = 1
	delay = time.Second

	for _, h := range msg.Headers {
		switch h.Key {
		case HeaderAttempts:
			if n, err := strconv.Atoi(string(h.Value)); err == nil && n > 0 {
				attempts = n
			}
		case HeaderBackoffType:
			backoffType = string(h.Value)
		case HeaderBackoffDelay:
			if ms, err := strconv.ParseInt(string(h.Value), 10, 64); err == nil && ms > 0 {
				delay = time.Duration(ms) * time.Millisecond
			}
		}
	}
	return attempts, backoffType, delay
}
