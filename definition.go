package strand

import (
	"context"
	"time"
)

// ExecuteFunc is a saga step body. It receives the accumulated saga
// context and the triggering event, and returns a context fragment that
// is shallow-merged into the instance context (later keys override
// earlier ones).
type ExecuteFunc func(ctx context.Context, sagaCtx map[string]any, event Event) (map[string]any, error)

// CompensateFunc undoes a previously completed step during rollback.
type CompensateFunc func(ctx context.Context, sagaCtx map[string]any, event Event) error

// Step is a single unit of work in a saga definition.
// Optional capabilities are expressed as additional interfaces:
// Compensator for rollback support and ApprovalGate for human gates.
type Step interface {
	// Name returns the step's unique name within its definition.
	Name() string

	// Execute runs the step body. For approval steps it computes the
	// context attached to the gate request and must not perform the
	// gated side effect itself.
	Execute(ctx context.Context, sagaCtx map[string]any, event Event) (map[string]any, error)
}

// Compensator is the optional rollback capability of a step.
// Compensation is opt-in per step; steps without it are skipped during
// the reverse walk.
type Compensator interface {
	Compensate(ctx context.Context, sagaCtx map[string]any, event Event) error
}

// ApprovalGate marks a step as an approval gate and carries its
// gate parameters.
type ApprovalGate interface {
	// ApprovalRoles returns the roles allowed to decide the gate.
	ApprovalRoles() []string

	// TimeoutAction returns the action the approval service should take
	// when the gate times out (e.g. "reject", "escalate").
	TimeoutAction() string
}

// StepOption configures a step during construction.
type StepOption func(*stepConfig)

type stepConfig struct {
	compensate    CompensateFunc
	roles         []string
	timeoutAction string
}

// WithCompensation attaches a compensating action to the step.
func WithCompensation(fn CompensateFunc) StepOption {
	return func(c *stepConfig) {
		c.compensate = fn
	}
}

// WithApprovalRoles sets the roles allowed to decide an approval gate.
func WithApprovalRoles(roles ...string) StepOption {
	return func(c *stepConfig) {
		c.roles = roles
	}
}

// WithTimeoutAction sets the approval service's action on gate timeout.
func WithTimeoutAction(action string) StepOption {
	return func(c *stepConfig) {
		c.timeoutAction = action
	}
}

// normalStep is the plain forward-execution step variant.
type normalStep struct {
	name       string
	execute    ExecuteFunc
	compensate CompensateFunc
}

// NewStep creates a normal step with the given name and body.
func NewStep(name string, execute ExecuteFunc, opts ...StepOption) Step {
	var cfg stepConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	s := &normalStep{name: name, execute: execute, compensate: cfg.compensate}
	if s.compensate != nil {
		return &compensableStep{normalStep: s}
	}
	return s
}

func (s *normalStep) Name() string { return s.name }

func (s *normalStep) Execute(ctx context.Context, sagaCtx map[string]any, event Event) (map[string]any, error) {
	if s.execute == nil {
		return nil, nil
	}
	return s.execute(ctx, sagaCtx, event)
}

// compensableStep wraps a normal step with its Compensator capability.
type compensableStep struct {
	*normalStep
}

func (s *compensableStep) Compensate(ctx context.Context, sagaCtx map[string]any, event Event) error {
	return s.compensate(ctx, sagaCtx, event)
}

// approvalStep is the approval-gated step variant.
type approvalStep struct {
	name          string
	execute       ExecuteFunc
	compensate    CompensateFunc
	roles         []string
	timeoutAction string
}

// NewApprovalStep creates an approval-gated step. Its body computes the
// context attached to the gate request; the gated side effect belongs in
// the step that follows the gate.
func NewApprovalStep(name string, execute ExecuteFunc, opts ...StepOption) Step {
	var cfg stepConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	return &approvalStep{
		name:          name,
		execute:       execute,
		compensate:    cfg.compensate,
		roles:         cfg.roles,
		timeoutAction: cfg.timeoutAction,
	}
}

func (s *approvalStep) Name() string { return s.name }

func (s *approvalStep) Execute(ctx context.Context, sagaCtx map[string]any, event Event) (map[string]any, error) {
	if s.execute == nil {
		return nil, nil
	}
	return s.execute(ctx, sagaCtx, event)
}

func (s *approvalStep) ApprovalRoles() []string { return s.roles }

func (s *approvalStep) TimeoutAction() string { return s.timeoutAction }

// Compensate implements Compensator when a compensation was attached.
func (s *approvalStep) Compensate(ctx context.Context, sagaCtx map[string]any, event Event) error {
	if s.compensate == nil {
		return nil
	}
	return s.compensate(ctx, sagaCtx, event)
}

// hasCompensation reports whether a step carries a usable compensation.
// Approval steps without an attached CompensateFunc are skipped even
// though they satisfy Compensator structurally.
func hasCompensation(step Step) (Compensator, bool) {
	if as, ok := step.(*approvalStep); ok {
		if as.compensate == nil {
			return nil, false
		}
		return as, true
	}
	c, ok := step.(Compensator)
	return c, ok
}

// Definition describes a named, versioned saga: an ordered list of steps
// subscribed to a trigger event type.
type Definition struct {
	// Name is the unique registry key. Re-registration under the same
	// name overwrites (last writer wins).
	Name string

	// Version is the definition version, defaulting to 1. It is copied
	// onto each instance at start time.
	Version int

	// TriggerEvent is the event type that starts a new instance.
	TriggerEvent string

	// Timeout is the instance expiry window. A default is used if zero.
	Timeout time.Duration

	// Category groups related sagas (e.g. "accounting").
	Category string

	// Description is human-readable documentation.
	Description string

	// Steps is the ordered step list.
	Steps []Step
}

// Validate checks the definition for registration.
func (d Definition) Validate() error {
	if d.Name == "" {
		return &DefinitionError{SagaName: d.Name, Reason: "name is required"}
	}
	if d.TriggerEvent == "" {
		return &DefinitionError{SagaName: d.Name, Reason: "trigger event is required"}
	}
	if len(d.Steps) == 0 {
		return &DefinitionError{SagaName: d.Name, Reason: "at least one step is required"}
	}

	seen := make(map[string]bool, len(d.Steps))
	for _, step := range d.Steps {
		if step == nil {
			return &DefinitionError{SagaName: d.Name, Reason: "nil step"}
		}
		if step.Name() == "" {
			return &DefinitionError{SagaName: d.Name, Reason: "step name is required"}
		}
		if seen[step.Name()] {
			return &DefinitionError{SagaName: d.Name, Reason: "duplicate step name " + step.Name()}
		}
		seen[step.Name()] = true
	}

	return nil
}

// mergeContext shallow-merges src into dst, returning dst. Later keys
// override earlier ones. A nil dst allocates.
func mergeContext(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = make(map[string]any, len(src))
	}
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
