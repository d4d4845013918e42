package local

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *LocalCache {
	c, err := NewCache(Config{GCInterval: time.Minute})
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func TestGetSet(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	err := c.Set(ctx, "session:abc", "42", 0)
	require.NoError(t, err)

	v, err := c.Get(ctx, "session:abc")
	require.NoError(t, err)
	assert.Equal(t, "42", v)
}

func TestGetMissing(t *testing.T) {
	c := newTestCache(t)
	_, err := c.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTTLExpiry(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	err := c.Set(ctx, "ttl_key", "val", 10*time.Millisecond)
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)
	_, err = c.Get(ctx, "ttl_key")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDelAndExists(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	_ = c.Set(ctx, "k", "v", 0)

	exists, err := c.Exists(ctx, "k")
	require.NoError(t, err)
	assert.True(t, exists)

	_ = c.Del(ctx, "k")
	_, err = c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSetNX(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	ok, err := c.SetNX(ctx, "lock", "owner", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.SetNX(ctx, "lock", "other", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok) // already held
}

func TestSetOps(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.SAdd(ctx, "online", "1", "2", "3"))
	require.NoError(t, c.SRem(ctx, "online", "2"))

	members, err := c.SMembers(ctx, "online")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"1", "3"}, members)

	ok, err := c.SIsMember(ctx, "online", "1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.SIsMember(ctx, "online", "2")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestZSetOrdering(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	_ = c.ZAdd(ctx, "ranking:level", 3, "alice")
	_ = c.ZAdd(ctx, "ranking:level", 9, "bob")
	_ = c.ZAdd(ctx, "ranking:level", 5, "carol")

	top, err := c.ZRevRange(ctx, "ranking:level", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"bob", "carol", "alice"}, top)

	// Re-score moves the member.
	_ = c.ZAdd(ctx, "ranking:level", 12, "alice")
	top, _ = c.ZRevRange(ctx, "ranking:level", 0, 0)
	assert.Equal(t, []string{"alice"}, top)

	score, err := c.ZScore(ctx, "ranking:level", "alice")
	require.NoError(t, err)
	assert.Equal(t, float64(12), score)

	_, err = c.ZScore(ctx, "ranking:level", "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListHistory(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	_ = c.LPush(ctx, "chat:global", "m1")
	_ = c.LPush(ctx, "chat:global", "m2")
	_ = c.LPush(ctx, "chat:global", "m3")

	msgs, err := c.LRange(ctx, "chat:global", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"m3", "m2", "m1"}, msgs)

	require.NoError(t, c.LTrim(ctx, "chat:global", 0, 1))
	msgs, _ = c.LRange(ctx, "chat:global", 0, -1)
	assert.Equal(t, []string{"m3", "m2"}, msgs)
}
