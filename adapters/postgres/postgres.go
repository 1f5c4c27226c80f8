// Package postgres provides PostgreSQL implementations of the saga
// instance, event log and tenant config stores.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"sync/atomic"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/AshkanYarmoradi/go-strand/adapters"
)

// Sentinel errors, aliased for errors.Is() compatibility.
var (
	ErrStoreClosed         = adapters.ErrStoreClosed
	ErrInstanceNotFound    = adapters.ErrInstanceNotFound
	ErrEventNotFound       = adapters.ErrEventNotFound
	ErrConcurrencyConflict = adapters.ErrConcurrencyConflict
)

// The Adapter implements the instance store directly; the event log
// and tenant config stores are exposed as views because their Load
// signatures collide with the instance store's.
var (
	_ adapters.InstanceStore     = (*Adapter)(nil)
	_ adapters.EventLogStore     = (*eventLogView)(nil)
	_ adapters.TenantConfigStore = (*tenantConfigView)(nil)
)

var identifierPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Adapter is a PostgreSQL backend for saga instances, the event log
// and tenant configuration. One Adapter serves all three store
// interfaces over a shared connection pool.
type Adapter struct {
	db     *sql.DB
	schema string
	closed atomic.Bool
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithSchema sets the database schema name.
func WithSchema(schema string) Option {
	return func(a *Adapter) {
		a.schema = schema
	}
}

// WithMaxConnections sets the maximum number of open connections.
func WithMaxConnections(n int) Option {
	return func(a *Adapter) {
		a.db.SetMaxOpenConns(n)
	}
}

// WithMaxIdleConnections sets the maximum number of idle connections.
func WithMaxIdleConnections(n int) Option {
	return func(a *Adapter) {
		a.db.SetMaxIdleConns(n)
	}
}

// WithConnectionMaxLifetime sets the maximum connection lifetime.
func WithConnectionMaxLifetime(d time.Duration) Option {
	return func(a *Adapter) {
		a.db.SetConnMaxLifetime(d)
	}
}

// NewAdapter creates a new PostgreSQL adapter from a connection string.
func NewAdapter(connStr string, opts ...Option) (*Adapter, error) {
	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return nil, fmt.Errorf("strand/postgres: failed to open database: %w", err)
	}
	return NewAdapterWithDB(db, opts...)
}

// NewAdapterWithDB creates a new adapter over an existing connection pool.
func NewAdapterWithDB(db *sql.DB, opts ...Option) (*Adapter, error) {
	adapter := &Adapter{
		db:     db,
		schema: "strand",
	}

	for _, opt := range opts {
		opt(adapter)
	}

	if !identifierPattern.MatchString(adapter.schema) {
		return nil, fmt.Errorf("strand/postgres: invalid schema name %q", adapter.schema)
	}

	return adapter, nil
}

// Initialize creates the schema and tables if they do not exist.
func (a *Adapter) Initialize(ctx context.Context) error {
	if a.closed.Load() {
		return ErrStoreClosed
	}

	if _, err := a.db.ExecContext(ctx, fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %s`, a.schema)); err != nil {
		return fmt.Errorf("strand/postgres: failed to create schema: %w", err)
	}

	instancesSQL := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s.saga_instances (
			id               UUID PRIMARY KEY,
			saga_name        VARCHAR(250) NOT NULL,
			saga_version     INT NOT NULL DEFAULT 1,
			trigger_event_id VARCHAR(500) NOT NULL,
			tenant_id        VARCHAR(250) NOT NULL,
			correlation_id   VARCHAR(500),
			current_step     INT NOT NULL DEFAULT 0,
			status           VARCHAR(50) NOT NULL,
			context          JSONB,
			step_results     JSONB,
			timeout_at       TIMESTAMPTZ,
			started_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			version          BIGINT NOT NULL DEFAULT 1
		)`, a.schema)

	if _, err := a.db.ExecContext(ctx, instancesSQL); err != nil {
		return fmt.Errorf("strand/postgres: failed to create saga_instances table: %w", err)
	}

	eventLogSQL := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s.event_log (
			event_id        VARCHAR(500) PRIMARY KEY,
			event_type      VARCHAR(500) NOT NULL,
			tenant_id       VARCHAR(250) NOT NULL,
			aggregate_id    VARCHAR(500),
			version         INT NOT NULL DEFAULT 1,
			payload         JSONB,
			metadata        JSONB,
			status          VARCHAR(50) NOT NULL,
			handler_results JSONB,
			created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`, a.schema)

	if _, err := a.db.ExecContext(ctx, eventLogSQL); err != nil {
		return fmt.Errorf("strand/postgres: failed to create event_log table: %w", err)
	}

	tenantsSQL := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s.tenant_configs (
			tenant_id       VARCHAR(250) PRIMARY KEY,
			enabled_sagas   JSONB,
			event_overrides JSONB,
			updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`, a.schema)

	if _, err := a.db.ExecContext(ctx, tenantsSQL); err != nil {
		return fmt.Errorf("strand/postgres: failed to create tenant_configs table: %w", err)
	}

	indexes := []string{
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_instances_correlation ON %s.saga_instances(correlation_id)`, a.schema),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_instances_status ON %s.saga_instances(status)`, a.schema),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_instances_tenant ON %s.saga_instances(tenant_id)`, a.schema),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_event_log_type ON %s.event_log(event_type)`, a.schema),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_event_log_tenant ON %s.event_log(tenant_id)`, a.schema),
	}

	for _, idx := range indexes {
		if _, err := a.db.ExecContext(ctx, idx); err != nil {
			return fmt.Errorf("strand/postgres: failed to create index: %w", err)
		}
	}

	return nil
}

// Ping checks database connectivity.
func (a *Adapter) Ping(ctx context.Context) error {
	if a.closed.Load() {
		return ErrStoreClosed
	}
	return a.db.PingContext(ctx)
}

// Close releases the connection pool.
func (a *Adapter) Close() error {
	if a.closed.Swap(true) {
		return nil
	}
	return a.db.Close()
}

// DB returns the underlying connection pool.
func (a *Adapter) DB() *sql.DB {
	return a.db
}

// Schema returns the schema name.
func (a *Adapter) Schema() string {
	return a.schema
}
