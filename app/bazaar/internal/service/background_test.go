package service

import (
	"testing"
	"time"

	"github.com/lk2023060901/shardbazaar/pkg/logger"
	"github.com/lk2023060901/shardbazaar/pkg/pool"
	"github.com/lk2023060901/shardbazaar/pkg/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackground_RegistersJobs(t *testing.T) {
	h := newHarness(t)
	h.register(t, "alice", 0)
	h.give(t, "alice", mewtwo)

	listing, err := h.market.List(t.Context(), "alice", 1, 10)
	require.NoError(t, err)
	h.clock.Advance(h.cfg.Market.TTL + time.Second)

	s, err := scheduler.New(nil)
	require.NoError(t, err)
	p, err := pool.New(nil)
	require.NoError(t, err)
	cycle := newTestScheduler(t, h, nil)

	bg, err := NewBackground(logger.NewNoop(), s, h.spawns, cycle, h.market, h.local, NewReaper(logger.NewNoop(), p, &h.cfg.Reaper), p, h.cfg)
	require.NoError(t, err)

	var names []string
	for _, j := range s.ListJobs() {
		names = append(names, j.Name)
	}
	assert.ElementsMatch(t, []string{JobSpawnCycle, JobMarketSweep, JobLocalSweep, JobSpawnReap}, names)

	// 启动时补做到期扫描
	require.NoError(t, bg.Start())
	list, err := h.market.Browse(t.Context(), 0)
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Len(t, h.collection(t, "alice"), 1)
	assert.NotEmpty(t, listing.Code)

	require.NoError(t, bg.Stop())
	assert.ErrorIs(t, p.Submit(func() {}), pool.ErrPoolClosed)
}
