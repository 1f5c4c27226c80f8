package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/AshkanYarmoradi/go-strand/adapters"
)

// Save persists a saga instance with optimistic concurrency control.
// Version 0 creates the row; any other value must match the stored
// version or ErrConcurrencyConflict is returned. On success the
// instance's Version reflects the newly stored version.
func (a *Adapter) Save(ctx context.Context, instance *adapters.SagaInstance) error {
	if a.closed.Load() {
		return ErrStoreClosed
	}
	if instance == nil {
		return adapters.ErrNilInstance
	}
	if instance.ID == "" {
		return adapters.ErrEmptyID
	}

	contextJSON, err := json.Marshal(instance.Context)
	if err != nil {
		return fmt.Errorf("strand/postgres: failed to marshal saga context: %w", err)
	}
	resultsJSON, err := json.Marshal(instance.StepResults)
	if err != nil {
		return fmt.Errorf("strand/postgres: failed to marshal step results: %w", err)
	}

	now := time.Now()

	if instance.Version == 0 {
		_, err := a.db.ExecContext(ctx, fmt.Sprintf(`
			INSERT INTO %s.saga_instances
				(id, saga_name, saga_version, trigger_event_id, tenant_id, correlation_id,
				 current_step, status, context, step_results, timeout_at, started_at, updated_at, version)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, 1)`, a.schema),
			instance.ID, instance.SagaName, instance.SagaVersion, instance.TriggerEventID,
			instance.TenantID, nullString(instance.CorrelationID), instance.CurrentStep,
			string(instance.Status), contextJSON, resultsJSON,
			instance.TimeoutAt, instance.StartedAt, now)
		if err != nil {
			if isUniqueViolation(err) {
				return adapters.NewConcurrencyError(instance.ID, 0, 1)
			}
			return fmt.Errorf("strand/postgres: failed to insert saga instance: %w", err)
		}
		instance.Version = 1
		instance.UpdatedAt = now
		return nil
	}

	// Compare-and-swap on the stored version.
	result, err := a.db.ExecContext(ctx, fmt.Sprintf(`
		UPDATE %s.saga_instances
		SET current_step = $1, status = $2, context = $3, step_results = $4,
		    timeout_at = $5, updated_at = $6, version = version + 1
		WHERE id = $7 AND version = $8`, a.schema),
		instance.CurrentStep, string(instance.Status), contextJSON, resultsJSON,
		instance.TimeoutAt, now, instance.ID, instance.Version)
	if err != nil {
		return fmt.Errorf("strand/postgres: failed to update saga instance: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("strand/postgres: failed to read update result: %w", err)
	}
	if affected == 0 {
		var actual int64
		scanErr := a.db.QueryRowContext(ctx, fmt.Sprintf(`
			SELECT version FROM %s.saga_instances WHERE id = $1`, a.schema),
			instance.ID).Scan(&actual)
		if scanErr == sql.ErrNoRows {
			return adapters.NewInstanceNotFoundError(instance.ID, "")
		}
		if scanErr != nil {
			return fmt.Errorf("strand/postgres: failed to read stored version: %w", scanErr)
		}
		return adapters.NewConcurrencyError(instance.ID, instance.Version, actual)
	}

	instance.Version++
	instance.UpdatedAt = now
	return nil
}

// Load retrieves an instance by ID.
func (a *Adapter) Load(ctx context.Context, instanceID string) (*adapters.SagaInstance, error) {
	if a.closed.Load() {
		return nil, ErrStoreClosed
	}
	if instanceID == "" {
		return nil, adapters.ErrEmptyID
	}

	row := a.db.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT id, saga_name, saga_version, trigger_event_id, tenant_id, correlation_id,
		       current_step, status, context, step_results, timeout_at, started_at, updated_at, version
		FROM %s.saga_instances
		WHERE id = $1`, a.schema), instanceID)

	instance, err := scanInstance(row)
	if err == sql.ErrNoRows {
		return nil, adapters.NewInstanceNotFoundError(instanceID, "")
	}
	if err != nil {
		return nil, fmt.Errorf("strand/postgres: failed to load saga instance: %w", err)
	}
	return instance, nil
}

// FindByCorrelationID returns the most recently started instance with
// the given correlation ID.
func (a *Adapter) FindByCorrelationID(ctx context.Context, correlationID string) (*adapters.SagaInstance, error) {
	if a.closed.Load() {
		return nil, ErrStoreClosed
	}
	if correlationID == "" {
		return nil, adapters.ErrEmptyID
	}

	row := a.db.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT id, saga_name, saga_version, trigger_event_id, tenant_id, correlation_id,
		       current_step, status, context, step_results, timeout_at, started_at, updated_at, version
		FROM %s.saga_instances
		WHERE correlation_id = $1
		ORDER BY started_at DESC
		LIMIT 1`, a.schema), correlationID)

	instance, err := scanInstance(row)
	if err == sql.ErrNoRows {
		return nil, adapters.NewInstanceNotFoundError("", correlationID)
	}
	if err != nil {
		return nil, fmt.Errorf("strand/postgres: failed to find saga instance: %w", err)
	}
	return instance, nil
}

// FindByStatus returns instances matching any of the given statuses,
// or all instances when no status is given.
func (a *Adapter) FindByStatus(ctx context.Context, statuses ...adapters.SagaStatus) ([]*adapters.SagaInstance, error) {
	if a.closed.Load() {
		return nil, ErrStoreClosed
	}

	query := fmt.Sprintf(`
		SELECT id, saga_name, saga_version, trigger_event_id, tenant_id, correlation_id,
		       current_step, status, context, step_results, timeout_at, started_at, updated_at, version
		FROM %s.saga_instances`, a.schema)

	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		placeholders := make([]string, len(statuses))
		for i, s := range statuses {
			placeholders[i] = fmt.Sprintf("$%d", i+1)
			args = append(args, string(s))
		}
		query += " WHERE status IN (" + strings.Join(placeholders, ", ") + ")"
	}
	query += " ORDER BY started_at DESC"

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("strand/postgres: failed to query saga instances: %w", err)
	}
	defer rows.Close()

	instances := make([]*adapters.SagaInstance, 0)
	for rows.Next() {
		instance, err := scanInstance(rows)
		if err != nil {
			return nil, fmt.Errorf("strand/postgres: failed to scan saga instance: %w", err)
		}
		instances = append(instances, instance)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("strand/postgres: error iterating saga instances: %w", err)
	}

	return instances, nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for shared scanning.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanInstance(row rowScanner) (*adapters.SagaInstance, error) {
	var (
		instance      adapters.SagaInstance
		status        string
		correlationID sql.NullString
		timeoutAt     sql.NullTime
		contextJSON   []byte
		resultsJSON   []byte
	)

	err := row.Scan(
		&instance.ID, &instance.SagaName, &instance.SagaVersion, &instance.TriggerEventID,
		&instance.TenantID, &correlationID, &instance.CurrentStep, &status,
		&contextJSON, &resultsJSON, &timeoutAt,
		&instance.StartedAt, &instance.UpdatedAt, &instance.Version,
	)
	if err != nil {
		return nil, err
	}

	instance.Status = adapters.SagaStatus(status)
	if correlationID.Valid {
		instance.CorrelationID = correlationID.String
	}
	if timeoutAt.Valid {
		instance.TimeoutAt = timeoutAt.Time
	}
	if len(contextJSON) > 0 {
		if err := json.Unmarshal(contextJSON, &instance.Context); err != nil {
			return nil, fmt.Errorf("failed to unmarshal saga context: %w", err)
		}
	}
	if len(resultsJSON) > 0 {
		if err := json.Unmarshal(resultsJSON, &instance.StepResults); err != nil {
			return nil, fmt.Errorf("failed to unmarshal step results: %w", err)
		}
	}

	return &instance, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// isUniqueViolation reports whether the error is a primary key or
// unique constraint violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "23505")
}
