package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AshkanYarmoradi/go-strand/adapters"
)

// Ensure interface compliance at compile time
var _ adapters.ApprovalService = (*ApprovalService)(nil)

// ApprovalService provides an in-memory implementation of
// adapters.ApprovalService that records created gates. It is intended
// for testing the approval suspension flow end-to-end.
type ApprovalService struct {
	mu    sync.Mutex
	gates []RecordedGate

	// failWith, when set, causes CreateGate to fail.
	failWith error
}

// RecordedGate pairs a created gate with the request that produced it.
type RecordedGate struct {
	Gate    adapters.Gate
	Request adapters.GateRequest
}

// NewApprovalService creates a new in-memory ApprovalService.
func NewApprovalService() *ApprovalService {
	return &ApprovalService{}
}

// CreateGate records the gate request and returns a new gate handle.
func (s *ApprovalService) CreateGate(ctx context.Context, req adapters.GateRequest) (*adapters.Gate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if s.failWith != nil {
		return nil, s.failWith
	}

	if req.SagaInstanceID == "" {
		return nil, errors.New("strand: gate request requires a saga instance ID")
	}

	gate := adapters.Gate{
		ID:        uuid.New().String(),
		CreatedAt: time.Now(),
	}
	s.gates = append(s.gates, RecordedGate{Gate: gate, Request: req})

	return &gate, nil
}

// Gates returns the gates created so far.
func (s *ApprovalService) Gates() []RecordedGate {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]RecordedGate, len(s.gates))
	copy(result, s.gates)
	return result
}

// FailWith makes subsequent CreateGate calls fail with err.
// Pass nil to restore normal behavior.
func (s *ApprovalService) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWith = err
}
