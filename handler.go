package strand

import (
	"context"
	"sync"
)

// Handler processes a dispatched event. Handlers run concurrently under
// the dispatch concurrency bound; a handler error is recorded but never
// fails sibling handlers or the dispatch itself.
type Handler func(ctx context.Context, event Event) error

// Subscription pairs a handler with the stable identifier assigned at
// registration time. Identifiers are used for tenant skip_handlers
// matching and audit records, never derived from function names.
type Subscription struct {
	// ID is the stable handler identifier.
	ID string

	// Handler is the function invoked on dispatch.
	Handler Handler
}

// HandlerRegistry stores event subscriptions. It is owned by a bus
// instance and passed by dependency injection rather than held in
// process-wide state.
type HandlerRegistry struct {
	mu     sync.RWMutex
	byType map[string][]Subscription
	global []Subscription
}

// NewHandlerRegistry creates an empty HandlerRegistry.
func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{
		byType: make(map[string][]Subscription),
	}
}

// Subscribe registers a handler for a specific event type.
// Registration must precede dispatch of that type; there is no
// retroactive delivery.
func (r *HandlerRegistry) Subscribe(eventType, id string, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byType[eventType] = append(r.byType[eventType], Subscription{ID: id, Handler: handler})
}

// SubscribeAll registers a handler for every event type.
func (r *HandlerRegistry) SubscribeAll(id string, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.global = append(r.global, Subscription{ID: id, Handler: handler})
}

// ForType returns the union of type-specific and global subscriptions,
// type-specific first.
func (r *HandlerRegistry) ForType(eventType string) []Subscription {
	r.mu.RLock()
	defer r.mu.RUnlock()

	typed := r.byType[eventType]
	result := make([]Subscription, 0, len(typed)+len(r.global))
	result = append(result, typed...)
	result = append(result, r.global...)
	return result
}

// Count returns the number of subscriptions for an event type, including
// global subscriptions.
func (r *HandlerRegistry) Count(eventType string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byType[eventType]) + len(r.global)
}
