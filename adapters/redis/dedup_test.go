package redis

import (
	"testing"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDedupStore_Defaults(t *testing.T) {
	client := goredis.NewClient(&goredis.Options{Addr: "localhost:6379"})
	defer client.Close()

	store := NewDedupStore(client)

	require.NotNil(t, store)
	assert.Equal(t, "strand:dedup:", store.prefix)
	assert.Same(t, client, store.client)
}

func TestNewDedupStore_WithKeyPrefix(t *testing.T) {
	client := goredis.NewClient(&goredis.Options{Addr: "localhost:6379"})
	defer client.Close()

	store := NewDedupStore(client, WithKeyPrefix("events:seen:"))

	assert.Equal(t, "events:seen:", store.prefix)
}

func TestNewDedupStoreFromAddr(t *testing.T) {
	store := NewDedupStoreFromAddr("localhost:6379")
	defer store.Close()

	require.NotNil(t, store)
	assert.NotNil(t, store.client)
}
