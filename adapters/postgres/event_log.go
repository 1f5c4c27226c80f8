package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/AshkanYarmoradi/go-strand/adapters"
)

// Insert writes a new event log record. Re-dispatch of an already
// logged event updates the row in place, preserving created_at.
func (a *Adapter) Insert(ctx context.Context, record *adapters.EventLogRecord) error {
	if a.closed.Load() {
		return ErrStoreClosed
	}
	if record == nil {
		return adapters.ErrNilRecord
	}
	if record.EventID == "" {
		return adapters.ErrEmptyID
	}

	payloadJSON, err := json.Marshal(record.Payload)
	if err != nil {
		return fmt.Errorf("strand/postgres: failed to marshal payload: %w", err)
	}
	metadataJSON, err := json.Marshal(record.Metadata)
	if err != nil {
		return fmt.Errorf("strand/postgres: failed to marshal metadata: %w", err)
	}
	resultsJSON, err := json.Marshal(record.HandlerResults)
	if err != nil {
		return fmt.Errorf("strand/postgres: failed to marshal handler results: %w", err)
	}

	_, err = a.db.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %s.event_log
			(event_id, event_type, tenant_id, aggregate_id, version, payload, metadata, status, handler_results)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (event_id) DO UPDATE SET
			status = EXCLUDED.status,
			handler_results = EXCLUDED.handler_results,
			updated_at = NOW()`, a.schema),
		record.EventID, record.EventType, record.TenantID, nullString(record.AggregateID),
		record.Version, payloadJSON, metadataJSON, string(record.Status), resultsJSON)
	if err != nil {
		return fmt.Errorf("strand/postgres: failed to insert event log record: %w", err)
	}

	return nil
}

// Finalize updates the record's status and handler results.
func (a *Adapter) Finalize(ctx context.Context, eventID string, status adapters.EventLogStatus, results []adapters.HandlerResult) error {
	if a.closed.Load() {
		return ErrStoreClosed
	}
	if eventID == "" {
		return adapters.ErrEmptyID
	}

	resultsJSON, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("strand/postgres: failed to marshal handler results: %w", err)
	}

	result, err := a.db.ExecContext(ctx, fmt.Sprintf(`
		UPDATE %s.event_log
		SET status = $1, handler_results = $2, updated_at = NOW()
		WHERE event_id = $3`, a.schema),
		string(status), resultsJSON, eventID)
	if err != nil {
		return fmt.Errorf("strand/postgres: failed to finalize event log record: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("strand/postgres: failed to read finalize result: %w", err)
	}
	if affected == 0 {
		return ErrEventNotFound
	}

	return nil
}

// LoadEvent retrieves an event log record by event ID.
//
// The method is named LoadEvent because the Adapter also serves the
// instance store, whose Load takes an instance ID. Use EventLog() to
// get the record-store view with its interface-shaped Load.
func (a *Adapter) LoadEvent(ctx context.Context, eventID string) (*adapters.EventLogRecord, error) {
	if a.closed.Load() {
		return nil, ErrStoreClosed
	}
	if eventID == "" {
		return nil, adapters.ErrEmptyID
	}

	var (
		record       adapters.EventLogRecord
		aggregateID  sql.NullString
		status       string
		payloadJSON  []byte
		metadataJSON []byte
		resultsJSON  []byte
		createdAt    time.Time
		updatedAt    time.Time
	)

	err := a.db.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT event_id, event_type, tenant_id, aggregate_id, version, payload, metadata,
		       status, handler_results, created_at, updated_at
		FROM %s.event_log
		WHERE event_id = $1`, a.schema), eventID).Scan(
		&record.EventID, &record.EventType, &record.TenantID, &aggregateID, &record.Version,
		&payloadJSON, &metadataJSON, &status, &resultsJSON, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("strand/postgres: failed to load event log record: %w", err)
	}

	record.Status = adapters.EventLogStatus(status)
	record.CreatedAt = createdAt
	record.UpdatedAt = updatedAt
	if aggregateID.Valid {
		record.AggregateID = aggregateID.String
	}
	if len(payloadJSON) > 0 {
		if err := json.Unmarshal(payloadJSON, &record.Payload); err != nil {
			return nil, fmt.Errorf("strand/postgres: failed to unmarshal payload: %w", err)
		}
	}
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &record.Metadata); err != nil {
			return nil, fmt.Errorf("strand/postgres: failed to unmarshal metadata: %w", err)
		}
	}
	if len(resultsJSON) > 0 {
		if err := json.Unmarshal(resultsJSON, &record.HandlerResults); err != nil {
			return nil, fmt.Errorf("strand/postgres: failed to unmarshal handler results: %w", err)
		}
	}

	return &record, nil
}

// EventLog returns the adapter's event log store view.
func (a *Adapter) EventLog() adapters.EventLogStore {
	return &eventLogView{a}
}

// eventLogView adapts Adapter to the EventLogStore interface, whose
// Load signature collides with the instance store's.
type eventLogView struct {
	adapter *Adapter
}

func (v *eventLogView) Insert(ctx context.Context, record *adapters.EventLogRecord) error {
	return v.adapter.Insert(ctx, record)
}

func (v *eventLogView) Finalize(ctx context.Context, eventID string, status adapters.EventLogStatus, results []adapters.HandlerResult) error {
	return v.adapter.Finalize(ctx, eventID, status, results)
}

func (v *eventLogView) Load(ctx context.Context, eventID string) (*adapters.EventLogRecord, error) {
	return v.adapter.LoadEvent(ctx, eventID)
}

// Close is a no-op on the view; the shared pool is closed via the Adapter.
func (v *eventLogView) Close() error {
	return nil
}
