package strand

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlerRegistry(t *testing.T) {
	noop := func(ctx context.Context, event Event) error { return nil }

	t.Run("typed handlers precede global handlers", func(t *testing.T) {
		registry := NewHandlerRegistry()
		registry.SubscribeAll("audit", noop)
		registry.Subscribe("order.created", "projector", noop)
		registry.Subscribe("order.created", "email", noop)

		subs := registry.ForType("order.created")
		require.Len(t, subs, 3)
		assert.Equal(t, "projector", subs[0].ID)
		assert.Equal(t, "email", subs[1].ID)
		assert.Equal(t, "audit", subs[2].ID)
	})

	t.Run("unknown type gets only global handlers", func(t *testing.T) {
		registry := NewHandlerRegistry()
		registry.SubscribeAll("audit", noop)
		registry.Subscribe("order.created", "projector", noop)

		subs := registry.ForType("order.cancelled")
		require.Len(t, subs, 1)
		assert.Equal(t, "audit", subs[0].ID)
	})

	t.Run("count includes globals", func(t *testing.T) {
		registry := NewHandlerRegistry()
		assert.Equal(t, 0, registry.Count("order.created"))

		registry.Subscribe("order.created", "projector", noop)
		registry.SubscribeAll("audit", noop)
		assert.Equal(t, 2, registry.Count("order.created"))
		assert.Equal(t, 1, registry.Count("order.cancelled"))
	})
}
