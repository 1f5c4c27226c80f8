package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/AshkanYarmoradi/go-strand/adapters"
)

// LoadTenantConfig retrieves the config for a tenant.
// Returns nil, nil when no config row exists.
func (a *Adapter) LoadTenantConfig(ctx context.Context, tenantID string) (*adapters.TenantConfig, error) {
	if a.closed.Load() {
		return nil, ErrStoreClosed
	}
	if tenantID == "" {
		return nil, adapters.ErrEmptyID
	}

	var (
		config        adapters.TenantConfig
		sagasJSON     []byte
		overridesJSON []byte
	)

	err := a.db.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT tenant_id, enabled_sagas, event_overrides
		FROM %s.tenant_configs
		WHERE tenant_id = $1`, a.schema), tenantID).Scan(
		&config.TenantID, &sagasJSON, &overridesJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("strand/postgres: failed to load tenant config: %w", err)
	}

	if len(sagasJSON) > 0 {
		if err := json.Unmarshal(sagasJSON, &config.EnabledSagas); err != nil {
			return nil, fmt.Errorf("strand/postgres: failed to unmarshal enabled sagas: %w", err)
		}
	}
	if len(overridesJSON) > 0 {
		if err := json.Unmarshal(overridesJSON, &config.EventOverrides); err != nil {
			return nil, fmt.Errorf("strand/postgres: failed to unmarshal event overrides: %w", err)
		}
	}

	return &config, nil
}

// SaveTenantConfig upserts a tenant's config row.
func (a *Adapter) SaveTenantConfig(ctx context.Context, config *adapters.TenantConfig) error {
	if a.closed.Load() {
		return ErrStoreClosed
	}
	if config == nil || config.TenantID == "" {
		return adapters.ErrEmptyID
	}

	sagasJSON, err := json.Marshal(config.EnabledSagas)
	if err != nil {
		return fmt.Errorf("strand/postgres: failed to marshal enabled sagas: %w", err)
	}
	overridesJSON, err := json.Marshal(config.EventOverrides)
	if err != nil {
		return fmt.Errorf("strand/postgres: failed to marshal event overrides: %w", err)
	}

	_, err = a.db.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %s.tenant_configs (tenant_id, enabled_sagas, event_overrides)
		VALUES ($1, $2, $3)
		ON CONFLICT (tenant_id) DO UPDATE SET
			enabled_sagas = EXCLUDED.enabled_sagas,
			event_overrides = EXCLUDED.event_overrides,
			updated_at = NOW()`, a.schema),
		config.TenantID, sagasJSON, overridesJSON)
	if err != nil {
		return fmt.Errorf("strand/postgres: failed to save tenant config: %w", err)
	}

	return nil
}

// TenantConfigs returns the adapter's tenant config store view.
func (a *Adapter) TenantConfigs() adapters.TenantConfigStore {
	return &tenantConfigView{a}
}

type tenantConfigView struct {
	adapter *Adapter
}

func (v *tenantConfigView) Load(ctx context.Context, tenantID string) (*adapters.TenantConfig, error) {
	return v.adapter.LoadTenantConfig(ctx, tenantID)
}
