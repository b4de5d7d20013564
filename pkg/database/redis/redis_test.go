package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	addr := os.Getenv("SHARDBAZAAR_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("SHARDBAZAAR_TEST_REDIS_ADDR not set, skipping redis integration test")
	}
	c, err := NewClient(&Config{Addr: addr, DB: 15})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
	assert.ErrorIs(t, (&Config{}).Validate(), ErrInvalidConfig)
	assert.ErrorIs(t, (&Config{Addr: "x:1", DB: 16}).Validate(), ErrInvalidConfig)

	var nilCfg *Config
	assert.ErrorIs(t, nilCfg.Validate(), ErrNilConfig)
}

func TestLockExclusive(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	key := "test:lock:" + time.Now().Format("150405.000000")

	l1 := NewLock(c, key, time.Second)
	l2 := NewLock(c, key, time.Second)

	ok, err := l1.TryLock(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = l2.TryLock(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.ErrorIs(t, l2.Unlock(ctx), ErrLockNotHeld)
	require.NoError(t, l1.Refresh(ctx))
	require.NoError(t, l1.Unlock(ctx))

	ok, err = l2.TryLock(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, l2.Unlock(ctx))
}

func TestHashAndScript(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	key := "test:hash:" + time.Now().Format("150405.000000")

	require.NoError(t, c.HSetWithTTL(ctx, key, time.Minute, "match", "pikachu", "payload", []byte{1, 2}))
	v, err := c.HGet(ctx, key, "match")
	require.NoError(t, err)
	assert.Equal(t, "pikachu", string(v))

	_, err = c.HGet(ctx, key, "missing")
	assert.ErrorIs(t, err, ErrNil)

	n, err := c.Del(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
