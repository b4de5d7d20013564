package app

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingServer struct {
	mu      sync.Mutex
	events  *[]string
	name    string
	stopErr error
}

func (s *recordingServer) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	*s.events = append(*s.events, "start:"+s.name)
	return nil
}

func (s *recordingServer) Stop() error { return s.stopErr }

func TestShutdownClosesInReverseOrder(t *testing.T) {
	var order []string
	a := NewBaseApp(WithName("test"), WithStopTimeout(time.Second))
	a.AppendServer(&recordingServer{events: &order, name: "s1", stopErr: errors.New("boom")})
	a.AppendCloser(
		CloserFunc(func() error { order = append(order, "db"); return nil }),
		CloserFunc(func() error { order = append(order, "redis"); return nil }),
	)

	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = a.Shutdown()
	}()

	require.NoError(t, a.Run())
	assert.Equal(t, []string{"start:s1", "redis", "db"}, order)
	assert.Error(t, a.Context().Err())

	// 第二次调用无副作用
	assert.NoError(t, a.Shutdown())
	assert.ErrorIs(t, a.Run(), ErrAppAlreadyRunning)
}
