package strand

import (
	"errors"
	"fmt"

	"github.com/AshkanYarmoradi/go-strand/adapters"
)

// Sentinel errors for common error conditions.
// Use errors.Is() to check for these errors.
// Store-level errors are aliases to the adapters package for compatibility.
var (
	// ErrInstanceNotFound indicates the requested saga instance does not exist.
	ErrInstanceNotFound = adapters.ErrInstanceNotFound

	// ErrEventNotFoundInLog indicates no log row exists for a replay request.
	ErrEventNotFoundInLog = adapters.ErrEventNotFound

	// ErrConcurrencyConflict indicates an optimistic concurrency violation.
	ErrConcurrencyConflict = adapters.ErrConcurrencyConflict

	// ErrNilEvent indicates a zero-value event was passed to dispatch.
	ErrNilEvent = errors.New("strand: event is required")

	// ErrEventTypeRequired indicates an event without a type discriminator.
	ErrEventTypeRequired = errors.New("strand: event type is required")

	// ErrTenantRequired indicates an event without a tenant ID.
	ErrTenantRequired = errors.New("strand: tenant ID is required")

	// ErrBusClosed indicates the event bus has been closed.
	ErrBusClosed = errors.New("strand: event bus closed")

	// ErrSagaNotRegistered indicates no definition exists for a saga name.
	ErrSagaNotRegistered = errors.New("strand: saga not registered")

	// ErrInvalidDefinition indicates a saga definition failed validation.
	ErrInvalidDefinition = errors.New("strand: invalid saga definition")

	// ErrStepFailed indicates a saga step failed and compensation was triggered.
	ErrStepFailed = errors.New("strand: saga step failed")

	// ErrCompensationFailed indicates a compensating action failed.
	ErrCompensationFailed = errors.New("strand: saga compensation failed")

	// ErrOrchestratorStoreRequired indicates the orchestrator has no instance store.
	ErrOrchestratorStoreRequired = errors.New("strand: instance store is required")

	// ErrNotAwaitingApproval indicates an approval decision was delivered
	// for an instance that is not suspended at a gate.
	ErrNotAwaitingApproval = errors.New("strand: saga instance is not awaiting approval")

	// ErrApprovalStepMismatch indicates an approval decision referenced a
	// step index other than the one the instance is suspended at.
	ErrApprovalStepMismatch = errors.New("strand: approval decision does not match suspended step")
)

// StepFailedError provides detailed information about a failed saga step.
type StepFailedError struct {
	SagaName  string
	StepName  string
	StepIndex int
	Cause     error
}

// Error returns the error message.
func (e *StepFailedError) Error() string {
	return fmt.Sprintf("strand: saga %q step %q (index %d) failed: %v",
		e.SagaName, e.StepName, e.StepIndex, e.Cause)
}

// Is reports whether this error matches the target error.
func (e *StepFailedError) Is(target error) bool {
	return target == ErrStepFailed
}

// Unwrap returns the underlying cause for errors.Unwrap().
func (e *StepFailedError) Unwrap() error {
	return e.Cause
}

// CompensationFailedError provides detailed information about a failed
// compensating action. Remaining compensations are abandoned once one fails.
type CompensationFailedError struct {
	SagaName  string
	StepName  string
	StepIndex int
	Cause     error
}

// Error returns the error message.
func (e *CompensationFailedError) Error() string {
	return fmt.Sprintf("strand: saga %q compensation for step %q (index %d) failed: %v",
		e.SagaName, e.StepName, e.StepIndex, e.Cause)
}

// Is reports whether this error matches the target error.
func (e *CompensationFailedError) Is(target error) bool {
	return target == ErrCompensationFailed
}

// Unwrap returns the underlying cause for errors.Unwrap().
func (e *CompensationFailedError) Unwrap() error {
	return e.Cause
}

// DefinitionError provides detailed information about an invalid saga definition.
type DefinitionError struct {
	SagaName string
	Reason   string
}

// Error returns the error message.
func (e *DefinitionError) Error() string {
	return fmt.Sprintf("strand: invalid saga definition %q: %s", e.SagaName, e.Reason)
}

// Is reports whether this error matches the target error.
func (e *DefinitionError) Is(target error) bool {
	return target == ErrInvalidDefinition
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DefinitionError) Unwrap() error {
	return ErrInvalidDefinition
}
