package memory

import (
	"context"
	"testing"
	"time"

	"github.com/AshkanYarmoradi/go-strand/adapters"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDedupStore_Claim(t *testing.T) {
	store := NewDedupStore()
	ctx := context.Background()

	claimed, err := store.Claim(ctx, "evt-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = store.Claim(ctx, "evt-1", time.Minute)
	require.NoError(t, err)
	assert.False(t, claimed)

	// A different key is unaffected.
	claimed, err = store.Claim(ctx, "evt-2", time.Minute)
	require.NoError(t, err)
	assert.True(t, claimed)
}

func TestDedupStore_Claim_EmptyKey(t *testing.T) {
	store := NewDedupStore()

	_, err := store.Claim(context.Background(), "", time.Minute)

	assert.ErrorIs(t, err, adapters.ErrEmptyID)
}

func TestDedupStore_Claim_Expiry(t *testing.T) {
	store := NewDedupStore()
	ctx := context.Background()

	now := time.Now()
	store.SetClock(func() time.Time { return now })

	claimed, err := store.Claim(ctx, "evt-1", 5*time.Minute)
	require.NoError(t, err)
	require.True(t, claimed)

	// Still within the TTL.
	store.SetClock(func() time.Time { return now.Add(4 * time.Minute) })
	claimed, err = store.Claim(ctx, "evt-1", 5*time.Minute)
	require.NoError(t, err)
	assert.False(t, claimed)

	// Past the TTL the key can be claimed again.
	store.SetClock(func() time.Time { return now.Add(6 * time.Minute) })
	claimed, err = store.Claim(ctx, "evt-1", 5*time.Minute)
	require.NoError(t, err)
	assert.True(t, claimed)
}

func TestDedupStore_Release(t *testing.T) {
	store := NewDedupStore()
	ctx := context.Background()

	claimed, err := store.Claim(ctx, "evt-1", time.Hour)
	require.NoError(t, err)
	require.True(t, claimed)

	require.NoError(t, store.Release(ctx, "evt-1"))

	claimed, err = store.Claim(ctx, "evt-1", time.Hour)
	require.NoError(t, err)
	assert.True(t, claimed)
}

func TestDedupStore_Release_EmptyKey(t *testing.T) {
	store := NewDedupStore()

	err := store.Release(context.Background(), "")

	assert.ErrorIs(t, err, adapters.ErrEmptyID)
}

func TestDedupStore_CanceledContext(t *testing.T) {
	store := NewDedupStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Claim(ctx, "evt-1", time.Minute)
	assert.ErrorIs(t, err, context.Canceled)

	err = store.Release(ctx, "evt-1")
	assert.ErrorIs(t, err, context.Canceled)
}
