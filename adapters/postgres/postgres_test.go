package postgres

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openPool(t *testing.T) *sql.DB {
	t.Helper()

	// sql.Open validates the DSN without dialing, so these tests run
	// without a live database.
	db, err := sql.Open("pgx", "postgres://localhost:5432/strand_test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestNewAdapterWithDB_Defaults(t *testing.T) {
	db := openPool(t)

	adapter, err := NewAdapterWithDB(db)

	require.NoError(t, err)
	assert.Equal(t, "strand", adapter.Schema())
	assert.Same(t, db, adapter.DB())
}

func TestNewAdapterWithDB_WithSchema(t *testing.T) {
	db := openPool(t)

	adapter, err := NewAdapterWithDB(db, WithSchema("sagas_v2"))

	require.NoError(t, err)
	assert.Equal(t, "sagas_v2", adapter.Schema())
}

func TestNewAdapterWithDB_InvalidSchema(t *testing.T) {
	db := openPool(t)

	tests := []struct {
		name   string
		schema string
	}{
		{"empty", ""},
		{"leading digit", "1schema"},
		{"injection", `strand"; DROP TABLE saga_instances; --`},
		{"hyphen", "my-schema"},
		{"whitespace", "my schema"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewAdapterWithDB(db, WithSchema(tt.schema))
			assert.Error(t, err)
		})
	}
}

func TestAdapter_Closed(t *testing.T) {
	adapter, err := NewAdapterWithDB(openPool(t))
	require.NoError(t, err)

	require.NoError(t, adapter.Close())

	assert.ErrorIs(t, adapter.Ping(context.Background()), ErrStoreClosed)
	assert.ErrorIs(t, adapter.Initialize(context.Background()), ErrStoreClosed)

	// Closing twice is a no-op.
	assert.NoError(t, adapter.Close())
}

func TestAdapter_Views(t *testing.T) {
	adapter, err := NewAdapterWithDB(openPool(t))
	require.NoError(t, err)

	assert.NotNil(t, adapter.EventLog())
	assert.NotNil(t, adapter.TenantConfigs())
}
