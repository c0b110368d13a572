package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRedisClient_EmptyAddr(t *testing.T) {
	assert.Nil(t, NewRedisClient("", "", 0))
}

func TestClient_DisabledIsAlwaysMiss(t *testing.T) {
	ctx := context.Background()

	for name, c := range map[string]*Client{"nil client": nil, "nil redis": New(nil)} {
		t.Run(name, func(t *testing.T) {
			assert.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))

			got, err := c.Get(ctx, "k")
			assert.NoError(t, err)
			assert.Nil(t, got)
		})
	}
}

func TestClient_UnreachableRedisFailsSafe(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	// Port 1 on loopback refuses connections.
	c := New(NewRedisClient("127.0.0.1:1", "", 0))

	assert.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	got, err := c.Get(ctx, "k")
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func newMiniredis(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := NewRedisClient(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = rdb.Close() })
	return New(rdb), mr
}

func TestClient_SetGet(t *testing.T) {
	ctx := context.Background()
	c, mr := newMiniredis(t)

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	mr.FastForward(2 * time.Minute)
	got, err = c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, got, "expired entry is a miss")
}

func TestClient_VersionAndBump(t *testing.T) {
	ctx := context.Background()
	c, mr := newMiniredis(t)

	v, ok := c.Version(ctx, "ver")
	assert.True(t, ok)
	assert.EqualValues(t, 0, v, "missing counter is version 0")

	require.NoError(t, c.Bump(ctx, "ver", time.Hour))
	require.NoError(t, c.Bump(ctx, "ver", time.Hour))
	v, ok = c.Version(ctx, "ver")
	assert.True(t, ok)
	assert.EqualValues(t, 2, v)
	assert.Equal(t, time.Hour, mr.TTL("ver"))

	require.NoError(t, mr.Set("garbage", "not-a-number"))
	_, ok = c.Version(ctx, "garbage")
	assert.False(t, ok)
}

func TestClient_VersionUnavailable(t *testing.T) {
	ctx := context.Background()

	_, ok := New(nil).Version(ctx, "ver")
	assert.False(t, ok)
	assert.NoError(t, New(nil).Bump(ctx, "ver", time.Hour))

	c, mr := newMiniredis(t)
	mr.Close()
	_, ok = c.Version(ctx, "ver")
	assert.False(t, ok, "redis failure disables caching")
	assert.NoError(t, c.Bump(ctx, "ver", time.Hour))
}
