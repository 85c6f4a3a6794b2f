package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache_SetGet(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	type heartbeat struct {
		Expired int `json:"expired"`
	}

	require.NoError(t, c.Set(ctx, "k", heartbeat{Expired: 3}, 0))

	var got heartbeat
	found, err := c.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 3, got.Expired)

	found, err = c.Get(ctx, "missing", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemoryCache_SetNXAndExpiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	ok, err := c.SetNX(ctx, "idem", "1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.SetNX(ctx, "idem", "1", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "second SetNX must not overwrite")

	now = now.Add(2 * time.Minute)
	exists, err := c.Exists(ctx, "idem")
	require.NoError(t, err)
	assert.False(t, exists, "key should be gone after ttl")

	ok, err = c.SetNX(ctx, "idem", "1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}
