package kafka

import (
	"context"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AshkanYarmoradi/go-strand/adapters"
)

func TestNew_Defaults(t *testing.T) {
	queue := New()
	defer queue.Close()

	require.NotNil(t, queue)
	assert.Equal(t, []string{"localhost:9092"}, queue.brokers)
	assert.Equal(t, "strand.", queue.topicPrefix)
}

func TestNew_Options(t *testing.T) {
	queue := New(
		WithBrokers("kafka-1:9092", "kafka-2:9092"),
		WithTopicPrefix("events."),
		WithBatchTimeout(50*time.Millisecond),
	)
	defer queue.Close()

	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, queue.brokers)
	assert.Equal(t, "events.", queue.topicPrefix)
	assert.Equal(t, 50*time.Millisecond, queue.batchTimeout)
}

func TestQueue_Enqueue_RequiresJobType(t *testing.T) {
	queue := New()
	defer queue.Close()

	err := queue.Enqueue(context.Background(), "", []byte("x"), adapters.EnqueueOptions{})

	assert.Error(t, err)
}

func TestQueue_GetWriter_Reuse(t *testing.T) {
	queue := New()
	defer queue.Close()

	first := queue.getWriter("strand.domain-events")
	second := queue.getWriter("strand.domain-events")
	other := queue.getWriter("strand.audit")

	assert.Same(t, first, second)
	assert.NotSame(t, first, other)
	assert.Equal(t, "strand.domain-events", first.Topic)
}

func TestNewConsumer_Validation(t *testing.T) {
	deliver := func(ctx context.Context, jobType string, payload []byte) error { return nil }

	_, err := NewConsumer("", deliver)
	assert.Error(t, err)

	_, err = NewConsumer("domain-events", nil)
	assert.Error(t, err)
}

func TestNewConsumer_Defaults(t *testing.T) {
	deliver := func(ctx context.Context, jobType string, payload []byte) error { return nil }

	consumer, err := NewConsumer("domain-events", deliver)
	require.NoError(t, err)
	defer consumer.Close()

	assert.Equal(t, "strand.domain-events", consumer.reader.Config().Topic)
	assert.Equal(t, "strand-bus", consumer.reader.Config().GroupID)
}

func TestRetryPolicy(t *testing.T) {
	msg := kafkago.Message{
		Headers: []kafkago.Header{
			{Key: HeaderAttempts, Value: []byte("3")},
			{Key: HeaderBackoffType, Value: []byte("exponential")},
			{Key: HeaderBackoffDelay, Value: []byte("250")},
		},
	}

	attempts, backoffType, delay := retryPolicy(msg)

	assert.Equal(t, 3, attempts)
	assert.Equal(t, "exponential", backoffType)
	assert.Equal(t, 250*time.Millisecond, delay)
}

func TestRetryPolicy_Defaults(t *testing.T) {
	attempts, backoffType, delay := retryPolicy(kafkago.Message{})

	assert.Equal(t, 1, attempts)
	assert.Empty(t, backoffType)
	assert.Equal(t, time.Second, delay)
}

func TestRetryPolicy_IgnoresInvalidHeaders(t *testing.T) {
	msg := kafkago.Message{
		Headers: []kafkago.Header{
			{Key: HeaderAttempts, Value: []byte("not-a-number")},
			{Key: HeaderBackoffDelay, Value: []byte("-5")},
		},
	}

	attempts, _, delay := retryPolicy(msg)

	assert.Equal(t, 1, attempts)
	assert.Equal(t, time.Second, delay)
}
