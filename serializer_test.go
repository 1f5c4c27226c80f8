package strand

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONSerializer_Roundtrip(t *testing.T) {
	serializer := NewJSONSerializer()

	event := NewEvent("invoice.created", "tenant-a", map[string]any{
		"invoice_id": "inv-1",
	},
		WithSource("api"),
		WithCorrelationID("corr-1"),
		WithAggregate("inv-1", 4),
	)

	data, err := serializer.MarshalEvent(event)
	require.NoError(t, err)

	decoded, err := serializer.UnmarshalEvent(data)
	require.NoError(t, err)

	assert.Equal(t, event.ID, decoded.ID)
	assert.Equal(t, "invoice.created", decoded.Type)
	assert.Equal(t, "tenant-a", decoded.TenantID)
	assert.Equal(t, "inv-1", decoded.AggregateID)
	assert.Equal(t, int64(4), decoded.AggregateVersion)
	assert.Equal(t, "api", decoded.Metadata.Source)
	assert.Equal(t, "corr-1", decoded.Metadata.CorrelationID)
	assert.Equal(t, "inv-1", decoded.Payload["invoice_id"])
}

func TestJSONSerializer_UnmarshalInvalid(t *testing.T) {
	serializer := NewJSONSerializer()

	_, err := serializer.UnmarshalEvent([]byte("{not json"))

	assert.Error(t, err)
}

func TestJSONSerializer_ContentType(t *testing.T) {
	assert.Equal(t, "application/json", NewJSONSerializer().ContentType())
}
