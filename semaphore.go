package strand

import "context"

// semaphore is a counting semaphore bounding concurrent handler execution.
// Waiters are granted slots in FIFO order. A fresh semaphore is created for
// each dispatch fan-out, so the bound applies to one event's handlers, not
// globally across simultaneously dispatching events.
type semaphore struct {
	slots chan struct{}
}

// newSemaphore creates a semaphore with the given capacity.
// A non-positive max is treated as 1.
func newSemaphore(max int) *semaphore {
	if max <= 0 {
		max = 1
	}
	return &semaphore{
		slots: make(chan struct{}, max),
	}
}

// Acquire grants a slot immediately if one is free, otherwise blocks until
// a holder releases or the context is cancelled.
func (s *semaphore) Acquire(ctx context.Context) error {
	select {
	case s.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees a slot, waking the longest-waiting acquirer if any.
func (s *semaphore) Release() {
	select {
	case <-s.slots:
	default:
		// Release without a matching Acquire is a programming error;
		// tolerate it rather than block.
	}
}

// Active returns the number of currently held slots.
func (s *semaphore) Active() int {
	return len(s.slots)
}
