package memkv_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avmarkin/ledgersvc/internal/kvstore"
	"github.com/avmarkin/ledgersvc/internal/kvstore/memkv"
)

func TestSetGetDelete(t *testing.T) {
	store := memkv.NewStore()
	ctx := context.Background()

	_, err := store.Get(ctx, "missing")
	assert.ErrorIs(t, err, kvstore.ErrKeyNotFound)

	require.NoError(t, store.Set(ctx, "key", "value", 0))

	value, err := store.Get(ctx, "key")
	require.NoError(t, err)
	assert.Equal(t, "value", value)

	require.NoError(t, store.Delete(ctx, "key"))

	_, err = store.Get(ctx, "key")
	assert.ErrorIs(t, err, kvstore.ErrKeyNotFound)
}

func TestExpiry(t *testing.T) {
	now := time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC)
	store := memkv.NewStore(memkv.WithNow(func() time.Time { return now }))
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "ephemeral", "value", time.Minute))
	require.NoError(t, store.Set(ctx, "persistent", "value", 0))

	now = now.Add(2 * time.Minute)

	_, err := store.Get(ctx, "ephemeral")
	assert.ErrorIs(t, err, kvstore.ErrKeyNotFound)

	// A zero TTL means the key never expires.
	_, err = store.Get(ctx, "persistent")
	assert.NoError(t, err)
}

func TestSetOverwrites(t *testing.T) {
	store := memkv.NewStore()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "key", "first", 0))
	require.NoError(t, store.Set(ctx, "key", "second", 0))

	value, err := store.Get(ctx, "key")
	require.NoError(t, err)
	assert.Equal(t, "second", value)
}
