package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) (*IdempotencyStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewIdempotencyStore(client, 24*time.Hour), mr
}

func TestIdempotencyStore_AddAndContains(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	seen, err := store.Contains(ctx, "evt-1")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, store.Add(ctx, "evt-1"))

	seen, err = store.Contains(ctx, "evt-1")
	require.NoError(t, err)
	assert.True(t, seen)

	// Other event IDs are unaffected.
	seen, err = store.Contains(ctx, "evt-2")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestIdempotencyStore_EntriesExpire(t *testing.T) {
	store, mr := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, "evt-1"))

	mr.FastForward(25 * time.Hour)

	seen, err := store.Contains(ctx, "evt-1")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestIdempotencyStore_RedisDown(t *testing.T) {
	store, mr := setupTestStore(t)
	ctx := context.Background()

	mr.Close()

	_, err := store.Contains(ctx, "evt-1")
	assert.Error(t, err)
	assert.Error(t, store.Add(ctx, "evt-1"))
}
