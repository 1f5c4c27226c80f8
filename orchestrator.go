package strand

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AshkanYarmoradi/go-strand/adapters"
)

// DefaultSagaTimeout is the instance expiry window used when a
// definition does not set one. The orchestrator records the deadline on
// the instance; enforcement is left to external sweepers.
const DefaultSagaTimeout = 5 * time.Minute

// resumeSource marks events synthesized when a suspended saga resumes.
const resumeSource = "saga-resume"

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithInstanceStore sets the saga instance store. Required.
func WithInstanceStore(store adapters.InstanceStore) OrchestratorOption {
	return func(o *Orchestrator) {
		o.store = store
	}
}

// WithApprovalService sets the external approval gate service.
// Without one, reaching an approval step fails the saga.
func WithApprovalService(service adapters.ApprovalService) OrchestratorOption {
	return func(o *Orchestrator) {
		o.approvals = service
	}
}

// WithOrchestratorTenantConfig sets the per-tenant policy source used to
// gate saga triggering per tenant.
func WithOrchestratorTenantConfig(store adapters.TenantConfigStore) OrchestratorOption {
	return func(o *Orchestrator) {
		o.tenants = store
	}
}

// WithOrchestratorLogger sets the logger.
func WithOrchestratorLogger(logger Logger) OrchestratorOption {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithOrchestratorMetrics sets the metrics sink.
func WithOrchestratorMetrics(sink MetricsSink) OrchestratorOption {
	return func(o *Orchestrator) {
		o.metrics = sink
	}
}

// WithDefaultTimeout sets the instance expiry window for definitions
// that do not set their own.
func WithDefaultTimeout(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		if d > 0 {
			o.defaultTimeout = d
		}
	}
}

// Orchestrator runs saga definitions: it subscribes each registered
// definition to its trigger event on the bus, executes steps in order
// with a persisted checkpoint after every step, suspends at approval
// gates and walks compensations in reverse on failure.
type Orchestrator struct {
	bus       *EventBus
	store     adapters.InstanceStore
	approvals adapters.ApprovalService
	tenants   adapters.TenantConfigStore
	logger    Logger
	metrics   MetricsSink

	defaultTimeout time.Duration

	mu          sync.RWMutex
	definitions map[string]Definition
	subscribed  map[string]map[string]bool
}

// NewOrchestrator creates an Orchestrator attached to the given bus.
// An instance store is required; everything else is optional.
func NewOrchestrator(bus *EventBus, opts ...OrchestratorOption) (*Orchestrator, error) {
	o := &Orchestrator{
		bus:            bus,
		logger:         &noopLogger{},
		metrics:        noopMetrics{},
		defaultTimeout: DefaultSagaTimeout,
		definitions:    make(map[string]Definition),
		subscribed:     make(map[string]map[string]bool),
	}

	for _, opt := range opts {
		opt(o)
	}

	if o.store == nil {
		return nil, ErrOrchestratorStoreRequired
	}

	return o, nil
}

// RegisterSaga validates and registers a definition, subscribing it to
// its trigger event under the handler ID "saga:<name>". Registering the
// same name again overwrites the definition; an overwrite that changes
// the trigger event subscribes the new trigger, and subscriptions left
// on a previous trigger no-op.
func (o *Orchestrator) RegisterSaga(def Definition) error {
	if err := def.Validate(); err != nil {
		return err
	}
	if def.Version == 0 {
		def.Version = 1
	}
	if def.Timeout == 0 {
		def.Timeout = o.defaultTimeout
	}

	o.mu.Lock()
	o.definitions[def.Name] = def
	triggers := o.subscribed[def.Name]
	if triggers == nil {
		triggers = make(map[string]bool)
		o.subscribed[def.Name] = triggers
	}
	alreadySubscribed := triggers[def.TriggerEvent]
	if !alreadySubscribed {
		triggers[def.TriggerEvent] = true
	}
	o.mu.Unlock()

	if alreadySubscribed {
		o.logger.Debug("Saga definition replaced", "saga", def.Name, "version", def.Version)
		return nil
	}

	name := def.Name
	o.bus.Subscribe(def.TriggerEvent, "saga:"+name, func(ctx context.Context, event Event) error {
		// The definition is resolved at dispatch time so overwrites
		// take effect for subsequent triggers. A subscription whose
		// event type no longer matches the current trigger is stale.
		current, err := o.Definition(name)
		if err != nil || current.TriggerEvent != event.Type {
			return nil
		}
		if _, err := o.StartSaga(ctx, name, event); err != nil {
			return err
		}
		return nil
	})

	o.logger.Info("Saga registered",
		"saga", def.Name, "version", def.Version,
		"trigger", def.TriggerEvent, "steps", len(def.Steps))
	return nil
}

// Definitions returns the names of all registered sagas.
func (o *Orchestrator) Definitions() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	names := make([]string, 0, len(o.definitions))
	for name := range o.definitions {
		names = append(names, name)
	}
	return names
}

// Definition returns a registered definition by name.
func (o *Orchestrator) Definition(name string) (Definition, error) {
	o.mu.RLock()
	def, ok := o.definitions[name]
	o.mu.RUnlock()
	if !ok {
		return Definition{}, fmt.Errorf("%w: %s", ErrSagaNotRegistered, name)
	}
	return def, nil
}

// StartSaga creates a new instance of the named saga for the given
// trigger event and executes its steps from the beginning. The instance
// is returned in its final state for this call: completed, failed or
// suspended at an approval gate. Step and compensation failures are
// reflected in the returned error.
func (o *Orchestrator) StartSaga(ctx context.Context, name string, event Event) (*adapters.SagaInstance, error) {
	def, err := o.Definition(name)
	if err != nil {
		return nil, err
	}

	if o.tenants != nil {
		config, tenantErr := o.tenants.Load(ctx, event.TenantID)
		if tenantErr != nil {
			o.logger.Warn("Tenant config lookup failed, allowing saga",
				"tenantId", event.TenantID, "saga", name, "error", tenantErr)
		} else if !config.SagaEnabled(name) {
			o.logger.Info("Saga disabled for tenant, skipping",
				"saga", name, "tenantId", event.TenantID, "eventId", event.ID)
			return nil, nil
		}
	}

	now := time.Now()
	instance := &adapters.SagaInstance{
		ID:             uuid.New().String(),
		SagaName:       def.Name,
		SagaVersion:    def.Version,
		TriggerEventID: event.ID,
		TenantID:       event.TenantID,
		CorrelationID:  event.Metadata.CorrelationID,
		CurrentStep:    0,
		Status:         adapters.SagaStatusRunning,
		Context:        mergeContext(nil, event.Payload),
		TimeoutAt:      now.Add(def.Timeout),
		StartedAt:      now,
		UpdatedAt:      now,
	}

	if err := o.store.Save(ctx, instance); err != nil {
		return nil, fmt.Errorf("strand: failed to persist new saga instance: %w", err)
	}

	o.metrics.RecordMetric(MetricSagaStarted, 1, map[string]string{
		"saga":      def.Name,
		"tenant_id": event.TenantID,
	})
	o.logger.Info("Saga started",
		"saga", def.Name, "instanceId", instance.ID,
		"eventId", event.ID, "tenantId", event.TenantID)

	return o.executeFrom(ctx, def, instance, event, 0)
}

// executeFrom runs steps from the given index forward, persisting a
// checkpoint after every step. It returns when every step has completed,
// an approval gate suspends the instance, or a failure triggers
// compensation.
func (o *Orchestrator) executeFrom(ctx context.Context, def Definition, instance *adapters.SagaInstance, event Event, start int) (*adapters.SagaInstance, error) {
	for i := start; i < len(def.Steps); i++ {
		step := def.Steps[i]

		if gate, ok := step.(ApprovalGate); ok {
			return o.suspendAtGate(ctx, def, instance, event, i, step, gate)
		}

		stepStart := time.Now()
		fragment, err := step.Execute(ctx, instance.Context, event)
		o.metrics.RecordMetric(MetricSagaStepDuration, float64(time.Since(stepStart).Milliseconds()), map[string]string{
			"saga": def.Name,
			"step": step.Name(),
		})

		if err != nil {
			o.logger.Error("Saga step failed",
				"saga", def.Name, "instanceId", instance.ID,
				"step", step.Name(), "stepIndex", i, "error", err)
			instance.StepResults = append(instance.StepResults, adapters.StepResult{
				StepName:    step.Name(),
				Status:      adapters.StepFailed,
				Error:       err.Error(),
				CompletedAt: time.Now(),
			})
			stepErr := &StepFailedError{SagaName: def.Name, StepName: step.Name(), StepIndex: i, Cause: err}
			return o.compensate(ctx, def, instance, event, i-1, stepErr)
		}

		instance.Context = mergeContext(instance.Context, fragment)
		instance.CurrentStep = i + 1
		instance.StepResults = append(instance.StepResults, adapters.StepResult{
			StepName:    step.Name(),
			Status:      adapters.StepCompleted,
			Result:      fragment,
			CompletedAt: time.Now(),
		})
		instance.UpdatedAt = time.Now()

		if err := o.store.Save(ctx, instance); err != nil {
			// A lost checkpoint would desynchronize resume and replay
			// state, so it is treated like a step failure and rolled back.
			o.logger.Error("Saga checkpoint failed",
				"saga", def.Name, "instanceId", instance.ID,
				"step", step.Name(), "error", err)
			stepErr := &StepFailedError{SagaName: def.Name, StepName: step.Name(), StepIndex: i, Cause: err}
			return o.compensate(ctx, def, instance, event, i, stepErr)
		}

		o.logger.Debug("Saga step completed",
			"saga", def.Name, "instanceId", instance.ID,
			"step", step.Name(), "stepIndex", i)
	}

	instance.Status = adapters.SagaStatusCompleted
	instance.UpdatedAt = time.Now()
	if err := o.store.Save(ctx, instance); err != nil {
		o.logger.Error("Failed to persist completed saga",
			"saga", def.Name, "instanceId", instance.ID, "error", err)
		return instance, fmt.Errorf("strand: failed to persist completed saga: %w", err)
	}

	o.metrics.RecordMetric(MetricSagaCompleted, 1, map[string]string{
		"saga":      def.Name,
		"tenant_id": instance.TenantID,
	})
	o.logger.Info("Saga completed",
		"saga", def.Name, "instanceId", instance.ID, "steps", len(def.Steps))

	return instance, nil
}

// suspendAtGate executes the gate step's body to compute gate context,
// persists the instance in waiting_approval with CurrentStep at the
// gate, and asks the approval service to create the gate. Gate creation
// failure is a step failure and triggers compensation.
func (o *Orchestrator) suspendAtGate(ctx context.Context, def Definition, instance *adapters.SagaInstance, event Event, index int, step Step, gate ApprovalGate) (*adapters.SagaInstance, error) {
	fragment, err := step.Execute(ctx, instance.Context, event)
	if err != nil {
		instance.StepResults = append(instance.StepResults, adapters.StepResult{
			StepName:    step.Name(),
			Status:      adapters.StepFailed,
			Error:       err.Error(),
			CompletedAt: time.Now(),
		})
		stepErr := &StepFailedError{SagaName: def.Name, StepName: step.Name(), StepIndex: index, Cause: err}
		return o.compensate(ctx, def, instance, event, index-1, stepErr)
	}

	instance.Context = mergeContext(instance.Context, fragment)
	instance.CurrentStep = index
	instance.Status = adapters.SagaStatusWaitingApproval
	instance.StepResults = append(instance.StepResults, adapters.StepResult{
		StepName:    step.Name(),
		Status:      adapters.StepWaitingApproval,
		Result:      fragment,
		CompletedAt: time.Now(),
	})
	instance.UpdatedAt = time.Now()

	if err := o.store.Save(ctx, instance); err != nil {
		o.logger.Error("Failed to persist suspended saga",
			"saga", def.Name, "instanceId", instance.ID,
			"step", step.Name(), "error", err)
		stepErr := &StepFailedError{SagaName: def.Name, StepName: step.Name(), StepIndex: index, Cause: err}
		return o.compensate(ctx, def, instance, event, index-1, stepErr)
	}

	if o.approvals == nil {
		o.logger.Error("No approval service configured",
			"saga", def.Name, "instanceId", instance.ID, "step", step.Name())
		stepErr := &StepFailedError{
			SagaName: def.Name, StepName: step.Name(), StepIndex: index,
			Cause: fmt.Errorf("strand: no approval service configured"),
		}
		return o.compensate(ctx, def, instance, event, index-1, stepErr)
	}

	req := adapters.GateRequest{
		TenantID:       instance.TenantID,
		SagaInstanceID: instance.ID,
		SagaName:       def.Name,
		StepName:       step.Name(),
		RequestedBy:    event.Metadata.UserID,
		ApprovalRoles:  gate.ApprovalRoles(),
		TimeoutAction:  gate.TimeoutAction(),
		Context:        instance.Context,
	}
	if v, ok := instance.Context["entity_type"].(string); ok {
		req.EntityType = v
	}
	if v, ok := instance.Context["entity_id"].(string); ok {
		req.EntityID = v
	}
	if v, ok := instance.Context["approval_title"].(string); ok {
		req.Title = v
	}
	if v, ok := instance.Context["approval_description"].(string); ok {
		req.Description = v
	}

	created, err := o.approvals.CreateGate(ctx, req)
	if err != nil {
		o.logger.Error("Failed to create approval gate",
			"saga", def.Name, "instanceId", instance.ID,
			"step", step.Name(), "error", err)
		stepErr := &StepFailedError{SagaName: def.Name, StepName: step.Name(), StepIndex: index, Cause: err}
		return o.compensate(ctx, def, instance, event, index-1, stepErr)
	}

	o.metrics.RecordMetric(MetricApprovalsCreated, 1, map[string]string{
		"saga": def.Name,
		"step": step.Name(),
	})
	o.logger.Info("Saga suspended at approval gate",
		"saga", def.Name, "instanceId", instance.ID,
		"step", step.Name(), "gateId", created.ID)

	return instance, nil
}

// ApprovalDecision is the outcome of an approval gate, delivered by the
// external approval service.
type ApprovalDecision struct {
	// Approved is true when the gate was approved, false when rejected.
	Approved bool

	// DecidedBy identifies who made the decision.
	DecidedBy string

	// Reason is an optional human-readable explanation.
	Reason string
}

// ResumeAfterApproval applies an approval decision to a suspended
// instance. The (sagaName, instanceID, stepIndex) tuple must match the
// state persisted when the gate was created. Approval resumes forward
// execution at the step after the gate; rejection compensates the steps
// completed before it. The returned instance reflects the final state
// of the resumed run.
func (o *Orchestrator) ResumeAfterApproval(ctx context.Context, sagaName, instanceID string, stepIndex int, decision ApprovalDecision) (*adapters.SagaInstance, error) {
	def, err := o.Definition(sagaName)
	if err != nil {
		return nil, err
	}

	instance, err := o.store.Load(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	if instance.SagaName != sagaName {
		return nil, fmt.Errorf("%w: instance %s belongs to saga %s", ErrApprovalStepMismatch, instanceID, instance.SagaName)
	}
	if instance.Status != adapters.SagaStatusWaitingApproval {
		return nil, fmt.Errorf("%w: instance %s is %s", ErrNotAwaitingApproval, instanceID, instance.Status)
	}
	if instance.CurrentStep != stepIndex || stepIndex < 0 || stepIndex >= len(def.Steps) {
		return nil, fmt.Errorf("%w: instance %s is suspended at step %d, decision targets %d",
			ErrApprovalStepMismatch, instanceID, instance.CurrentStep, stepIndex)
	}

	if instance.SagaVersion != def.Version {
		o.logger.Warn("Saga version changed since instance started, resuming anyway",
			"saga", def.Name, "instanceId", instance.ID,
			"instanceVersion", instance.SagaVersion, "definitionVersion", def.Version)
	}

	step := def.Steps[stepIndex]

	status := adapters.StepApproved
	if !decision.Approved {
		status = adapters.StepRejected
	}
	o.metrics.RecordMetric(MetricApprovalsDecided, 1, map[string]string{
		"saga":     def.Name,
		"step":     step.Name(),
		"decision": string(status),
	})

	o.recordDecision(instance, step.Name(), status, decision)

	event := o.resumeEvent(def, instance)

	if !decision.Approved {
		o.logger.Info("Approval rejected, compensating",
			"saga", def.Name, "instanceId", instance.ID,
			"step", step.Name(), "decidedBy", decision.DecidedBy)
		stepErr := &StepFailedError{
			SagaName: def.Name, StepName: step.Name(), StepIndex: stepIndex,
			Cause: fmt.Errorf("strand: approval rejected by %s", decision.DecidedBy),
		}
		return o.compensate(ctx, def, instance, event, stepIndex-1, stepErr)
	}

	instance.Status = adapters.SagaStatusRunning
	instance.CurrentStep = stepIndex + 1
	instance.UpdatedAt = time.Now()
	if err := o.store.Save(ctx, instance); err != nil {
		return instance, fmt.Errorf("strand: failed to persist approval decision: %w", err)
	}

	o.logger.Info("Approval granted, resuming",
		"saga", def.Name, "instanceId", instance.ID,
		"step", step.Name(), "decidedBy", decision.DecidedBy)

	return o.executeFrom(ctx, def, instance, event, stepIndex+1)
}

// recordDecision writes the approval outcome onto the gate's
// waiting_approval step result so the audit trail keeps one entry per
// gate. The append fallback covers instances persisted before the
// suspension result was recorded.
func (o *Orchestrator) recordDecision(instance *adapters.SagaInstance, stepName string, status adapters.StepStatus, decision ApprovalDecision) {
	for i := len(instance.StepResults) - 1; i >= 0; i-- {
		r := &instance.StepResults[i]
		if r.StepName == stepName && r.Status == adapters.StepWaitingApproval {
			r.Status = status
			r.DecidedBy = decision.DecidedBy
			r.CompletedAt = time.Now()
			if decision.Reason != "" {
				r.Error = decision.Reason
			}
			return
		}
	}

	result := adapters.StepResult{
		StepName:    stepName,
		Status:      status,
		DecidedBy:   decision.DecidedBy,
		CompletedAt: time.Now(),
	}
	if decision.Reason != "" {
		result.Error = decision.Reason
	}
	instance.StepResults = append(instance.StepResults, result)
}

// resumeEvent synthesizes the event passed to steps that run after a
// suspension, since the original trigger envelope is not persisted.
// The payload is seeded from the accumulated instance context.
func (o *Orchestrator) resumeEvent(def Definition, instance *adapters.SagaInstance) Event {
	opts := []EventOption{
		WithSource(resumeSource),
		WithSagaID(instance.ID),
	}
	if instance.CorrelationID != "" {
		opts = append(opts, WithCorrelationID(instance.CorrelationID))
	}
	return NewEvent(def.TriggerEvent, instance.TenantID, mergeContext(nil, instance.Context), opts...)
}

// compensate walks completed steps in reverse from fromStep down to the
// first, invoking each step's compensation where one exists. The first
// compensation failure stops the walk. The instance always terminates
// in failed status, whether or not every compensation ran; cause carries
// the original step failure and is always returned.
func (o *Orchestrator) compensate(ctx context.Context, def Definition, instance *adapters.SagaInstance, event Event, fromStep int, cause error) (*adapters.SagaInstance, error) {
	instance.Status = adapters.SagaStatusCompensating
	instance.UpdatedAt = time.Now()
	if err := o.store.Save(ctx, instance); err != nil {
		o.logger.Warn("Failed to persist compensating status",
			"saga", def.Name, "instanceId", instance.ID, "error", err)
	}

	for i := fromStep; i >= 0; i-- {
		step := def.Steps[i]
		comp, ok := hasCompensation(step)
		if !ok {
			o.logger.Debug("Step has no compensation, skipping",
				"saga", def.Name, "instanceId", instance.ID, "step", step.Name())
			continue
		}

		if err := comp.Compensate(ctx, instance.Context, event); err != nil {
			o.logger.Error("Compensation failed, halting rollback",
				"saga", def.Name, "instanceId", instance.ID,
				"step", step.Name(), "stepIndex", i, "error", err)
			instance.StepResults = append(instance.StepResults, adapters.StepResult{
				StepName:    step.Name() + ":compensate",
				Status:      adapters.StepFailed,
				Error:       err.Error(),
				CompletedAt: time.Now(),
			})
			o.finalizeFailed(ctx, def, instance)
			return instance, &CompensationFailedError{
				SagaName: def.Name, StepName: step.Name(), StepIndex: i, Cause: err,
			}
		}

		instance.StepResults = append(instance.StepResults, adapters.StepResult{
			StepName:    step.Name() + ":compensate",
			Status:      adapters.StepCompleted,
			CompletedAt: time.Now(),
		})
		o.logger.Debug("Step compensated",
			"saga", def.Name, "instanceId", instance.ID, "step", step.Name())
	}

	o.finalizeFailed(ctx, def, instance)
	return instance, cause
}

// finalizeFailed records the terminal failed status. Even a fully
// compensated saga ends failed: compensation undoes effects, it does
// not make the run a success.
func (o *Orchestrator) finalizeFailed(ctx context.Context, def Definition, instance *adapters.SagaInstance) {
	instance.Status = adapters.SagaStatusFailed
	instance.UpdatedAt = time.Now()
	if err := o.store.Save(ctx, instance); err != nil {
		o.logger.Error("Failed to persist failed saga",
			"saga", def.Name, "instanceId", instance.ID, "error", err)
	}
	o.metrics.RecordMetric(MetricSagaFailed, 1, map[string]string{
		"saga":      def.Name,
		"tenant_id": instance.TenantID,
	})
}

// Instance loads a saga instance by ID.
func (o *Orchestrator) Instance(ctx context.Context, id string) (*adapters.SagaInstance, error) {
	return o.store.Load(ctx, id)
}

// FindByCorrelationID returns the most recent instance sharing the
// given correlation ID.
func (o *Orchestrator) FindByCorrelationID(ctx context.Context, correlationID string) (*adapters.SagaInstance, error) {
	return o.store.FindByCorrelationID(ctx, correlationID)
}

// InstancesByStatus returns all instances in the given status.
func (o *Orchestrator) InstancesByStatus(ctx context.Context, status adapters.SagaStatus) ([]*adapters.SagaInstance, error) {
	return o.store.FindByStatus(ctx, status)
}
