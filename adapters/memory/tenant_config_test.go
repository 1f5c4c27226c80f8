package memory

import (
	"context"
	"testing"

	"github.com/AshkanYarmoradi/go-strand/adapters"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTenantConfigStore_Load_Unconfigured(t *testing.T) {
	store := NewTenantConfigStore()

	config, err := store.Load(context.Background(), "tenant-a")

	require.NoError(t, err)
	assert.Nil(t, config)
}

func TestTenantConfigStore_SetAndLoad(t *testing.T) {
	store := NewTenantConfigStore()

	store.Set(&adapters.TenantConfig{
		TenantID:     "tenant-a",
		EnabledSagas: []string{"order-fulfillment"},
		EventOverrides: map[string]adapters.EventOverride{
			"order.created": {SkipHandlers: []string{"email"}},
		},
	})

	config, err := store.Load(context.Background(), "tenant-a")

	require.NoError(t, err)
	require.NotNil(t, config)
	assert.Equal(t, []string{"order-fulfillment"}, config.EnabledSagas)
	assert.Equal(t, []string{"email"}, config.EventOverrides["order.created"].SkipHandlers)
}

func TestTenantConfigStore_Delete(t *testing.T) {
	store := NewTenantConfigStore()
	store.Set(&adapters.TenantConfig{TenantID: "tenant-a"})

	store.Delete("tenant-a")

	config, err := store.Load(context.Background(), "tenant-a")
	require.NoError(t, err)
	assert.Nil(t, config)
}
