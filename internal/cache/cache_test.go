package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLRUCache_SetGet(t *testing.T) {
	c, err := NewLRU(8)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "key", "value", time.Minute))

	got, ok, err := c.Get(ctx, "key")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "value", got)
}

func TestLRUCache_MissingKey(t *testing.T) {
	c, err := NewLRU(8)
	require.NoError(t, err)

	_, ok, err := c.Get(context.Background(), "absent")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLRUCache_TTLExpiry(t *testing.T) {
	c, err := NewLRU(8)
	require.NoError(t, err)
	ctx := context.Background()

	base := time.Now()
	c.now = func() time.Time { return base }

	require.NoError(t, c.Set(ctx, "key", "value", time.Minute))

	_, ok, err := c.Get(ctx, "key")
	require.NoError(t, err)
	assert.True(t, ok)

	c.now = func() time.Time { return base.Add(2 * time.Minute) }
	_, ok, err = c.Get(ctx, "key")
	require.NoError(t, err)
	assert.False(t, ok)

	// Expired entries are removed on read.
	assert.Zero(t, c.Len())
}

func TestLRUCache_NoTTLNeverExpires(t *testing.T) {
	c, err := NewLRU(8)
	require.NoError(t, err)
	ctx := context.Background()

	base := time.Now()
	c.now = func() time.Time { return base }

	require.NoError(t, c.Set(ctx, "key", "value", 0))

	c.now = func() time.Time { return base.Add(24 * time.Hour) }
	_, ok, err := c.Get(ctx, "key")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLRUCache_EvictsOldest(t *testing.T) {
	c, err := NewLRU(2)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a", 1, 0))
	require.NoError(t, c.Set(ctx, "b", 2, 0))
	require.NoError(t, c.Set(ctx, "c", 3, 0))

	_, ok, _ := c.Get(ctx, "a")
	assert.False(t, ok)
	_, ok, _ = c.Get(ctx, "c")
	assert.True(t, ok)
}

func TestLRUCache_DefaultSize(t *testing.T) {
	c, err := NewLRU(0)
	require.NoError(t, err)
	require.NoError(t, c.Set(context.Background(), "key", "value", 0))
	assert.Equal(t, 1, c.Len())
}

func TestLRUCache_Ping(t *testing.T) {
	c, err := NewLRU(8)
	require.NoError(t, err)
	assert.NoError(t, c.Ping(context.Background()))
}
