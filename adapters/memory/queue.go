package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/AshkanYarmoradi/go-strand/adapters"
)

// Ensure interface compliance at compile time
var _ adapters.Queue = (*Queue)(nil)

// DeliveryFunc consumes a queued envelope. A non-nil error triggers
// redelivery under the job's retry policy.
type DeliveryFunc func(ctx context.Context, jobType string, payload []byte) error

// Queue provides an in-memory at-least-once queue honoring the
// adapters.Queue retry contract. Each enqueued job is delivered on its
// own goroutine with exponential backoff between attempts.
type Queue struct {
	mu       sync.RWMutex
	delivery DeliveryFunc

	wg     sync.WaitGroup
	closed atomic.Bool
}

// NewQueue creates a new in-memory Queue.
// The delivery function may be set later via SetDelivery, which allows
// wiring the queue to a bus that itself depends on the queue.
func NewQueue() *Queue {
	return &Queue{}
}

// SetDelivery sets the consumer for delivered jobs.
func (q *Queue) SetDelivery(fn DeliveryFunc) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.delivery = fn
}

// Enqueue submits a job for asynchronous delivery.
func (q *Queue) Enqueue(ctx context.Context, jobType string, payload []byte, opts adapters.EnqueueOptions) error {
	if q.closed.Load() {
		return adapters.ErrStoreClosed
	}

	attempts := opts.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	delay := opts.Backoff.Delay

	buf := make([]byte, len(payload))
	copy(buf, payload)

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		q.deliver(jobType, buf, attempts, delay, opts.Backoff.Type)
	}()

	return nil
}

// deliver attempts delivery with backoff until success or exhaustion.
// Exhausted jobs are dropped, matching a queue configured with
// removeOnFail.
func (q *Queue) deliver(jobType string, payload []byte, attempts int, delay time.Duration, backoffType string) {
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 && delay > 0 {
			wait := delay
			if backoffType == "exponential" {
				wait = delay * time.Duration(1<<uint(attempt-1))
			}
			time.Sleep(wait)
		}

		if q.closed.Load() {
			return
		}

		q.mu.RLock()
		fn := q.delivery
		q.mu.RUnlock()

		if fn == nil {
			return
		}

		if err := fn(context.Background(), jobType, payload); err == nil {
			return
		}
	}
}

// Drain blocks until all in-flight deliveries have finished.
func (q *Queue) Drain() {
	q.wg.Wait()
}

// Close stops accepting jobs and abandons pending redeliveries.
func (q *Queue) Close() error {
	q.closed.Store(true)
	return nil
}
