package service

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lk2023060901/shardbazaar/pkg/logger"
	"github.com/lk2023060901/shardbazaar/pkg/pool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestReaper(t *testing.T) *Reaper {
	t.Helper()
	p, err := pool.New(&pool.Config{Size: 2, ReleaseTimeout: time.Second})
	require.NoError(t, err)
	r := NewReaper(logger.NewNoop(), p, &ReaperConfig{Grace: 10 * time.Millisecond, Timeout: time.Second})
	t.Cleanup(func() {
		r.Stop()
		_ = p.Release()
	})
	return r
}

func TestReaper_FiresAfterDeadline(t *testing.T) {
	r := newTestReaper(t)

	var fired atomic.Int32
	r.Schedule("market:1", time.Now().Add(20*time.Millisecond), func(ctx context.Context) {
		_, ok := ctx.Deadline()
		assert.True(t, ok)
		fired.Add(1)
	})
	assert.Equal(t, 1, r.Pending())

	assert.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.Zero(t, r.Pending())
}

func TestReaper_RescheduleReplaces(t *testing.T) {
	r := newTestReaper(t)

	var first, second atomic.Int32
	r.Schedule("local:7", time.Now().Add(20*time.Millisecond), func(context.Context) { first.Add(1) })
	r.Schedule("local:7", time.Now().Add(30*time.Millisecond), func(context.Context) { second.Add(1) })
	assert.Equal(t, 1, r.Pending())

	assert.Eventually(t, func() bool { return second.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.Zero(t, first.Load())
}

func TestReaper_CancelAndStop(t *testing.T) {
	r := newTestReaper(t)

	var fired atomic.Int32
	r.Schedule("market:2", time.Now().Add(50*time.Millisecond), func(context.Context) { fired.Add(1) })
	assert.True(t, r.Cancel("market:2"))
	assert.False(t, r.Cancel("market:2"))

	r.Schedule("market:3", time.Now().Add(50*time.Millisecond), func(context.Context) { fired.Add(1) })
	r.Stop()
	assert.Zero(t, r.Pending())

	// 停止后不再接受新任务
	r.Schedule("market:4", time.Now(), func(context.Context) { fired.Add(1) })
	assert.Zero(t, r.Pending())

	time.Sleep(150 * time.Millisecond)
	assert.Zero(t, fired.Load())
}
