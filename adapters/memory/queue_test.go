package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/AshkanYarmoradi/go-strand/adapters"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_Enqueue_Delivers(t *testing.T) {
	queue := NewQueue()

	var mu sync.Mutex
	var got []string
	queue.SetDelivery(func(ctx context.Context, jobType string, payload []byte) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, jobType+":"+string(payload))
		return nil
	})

	err := queue.Enqueue(context.Background(), "domain-events", []byte("hello"), adapters.EnqueueOptions{})
	require.NoError(t, err)

	queue.Drain()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 1)
	assert.Equal(t, "domain-events:hello", got[0])
}

func TestQueue_Enqueue_CopiesPayload(t *testing.T) {
	queue := NewQueue()

	var mu sync.Mutex
	var got []byte
	queue.SetDelivery(func(ctx context.Context, jobType string, payload []byte) error {
		mu.Lock()
		defer mu.Unlock()
		got = payload
		return nil
	})

	payload := []byte("original")
	require.NoError(t, queue.Enqueue(context.Background(), "jobs", payload, adapters.EnqueueOptions{}))
	payload[0] = 'X'

	queue.Drain()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "original", string(got))
}

func TestQueue_RetriesUntilSuccess(t *testing.T) {
	queue := NewQueue()

	var mu sync.Mutex
	calls := 0
	queue.SetDelivery(func(ctx context.Context, jobType string, payload []byte) error {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})

	err := queue.Enqueue(context.Background(), "jobs", []byte("x"), adapters.EnqueueOptions{
		Attempts: 5,
		Backoff:  adapters.BackoffPolicy{Type: "exponential", Delay: time.Millisecond},
	})
	require.NoError(t, err)

	queue.Drain()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 3, calls)
}

func TestQueue_DropsAfterRetryBudget(t *testing.T) {
	queue := NewQueue()

	var mu sync.Mutex
	calls := 0
	queue.SetDelivery(func(ctx context.Context, jobType string, payload []byte) error {
		mu.Lock()
		defer mu.Unlock()
		calls++
		return errors.New("permanent")
	})

	err := queue.Enqueue(context.Background(), "jobs", []byte("x"), adapters.EnqueueOptions{
		Attempts: 2,
		Backoff:  adapters.BackoffPolicy{Type: "fixed", Delay: time.Millisecond},
	})
	require.NoError(t, err)

	queue.Drain()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, calls)
}

func TestQueue_Enqueue_NoDeliveryFunc(t *testing.T) {
	queue := NewQueue()

	// Jobs enqueued before a consumer is wired are dropped silently.
	err := queue.Enqueue(context.Background(), "jobs", []byte("x"), adapters.EnqueueOptions{})
	require.NoError(t, err)

	queue.Drain()
}

func TestQueue_Closed(t *testing.T) {
	queue := NewQueue()
	require.NoError(t, queue.Close())

	err := queue.Enqueue(context.Background(), "jobs", []byte("x"), adapters.EnqueueOptions{})

	assert.ErrorIs(t, err, adapters.ErrStoreClosed)
}
