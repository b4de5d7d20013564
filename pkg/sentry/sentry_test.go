package sentry

import (
	"errors"
	"sync"
	"testing"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type eventRecorder struct {
	mu     sync.Mutex
	events []*sentry.Event
	drop   bool
}

func (r *eventRecorder) hook(event *sentry.Event) *sentry.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	if r.drop {
		return nil
	}
	return event
}

func newTestClient(t *testing.T, rec *eventRecorder) *Client {
	t.Helper()
	c, err := New(&Config{Tags: map[string]string{"service": "bazaar"}}, WithEventHook(rec.hook))
	require.NoError(t, err)
	return c
}

func TestNew_Defaults(t *testing.T) {
	c, err := New(nil)
	require.NoError(t, err)
	assert.False(t, c.Enabled())
	assert.Equal(t, 1.0, c.config.SampleRate)

	_, err = New(&Config{SampleRate: 2})
	assert.Error(t, err)
}

func TestCaptureError_Tags(t *testing.T) {
	rec := &eventRecorder{}
	c := newTestClient(t, rec)

	c.CaptureError(errors.New("boom"), map[string]string{"op": "market.purchase"})
	c.CaptureError(nil, nil)

	require.Len(t, rec.events, 1)
	ev := rec.events[0]
	assert.Equal(t, "market.purchase", ev.Tags["op"])
	assert.Equal(t, "bazaar", ev.Tags["service"])
	require.NotEmpty(t, ev.Exception)
	assert.Equal(t, "boom", ev.Exception[0].Value)

	// 单次标签不污染后续事件
	c.CaptureError(errors.New("again"), nil)
	require.Len(t, rec.events, 2)
	assert.NotContains(t, rec.events[1].Tags, "op")

	assert.Equal(t, Stats{EventsTotal: 2, EventsCaptured: 2}, c.Stats())
}

func TestCapturePanic(t *testing.T) {
	rec := &eventRecorder{}
	c := newTestClient(t, rec)

	func() {
		defer func() {
			c.CapturePanic(recover(), map[string]string{"path": "/x"})
		}()
		panic("kaboom")
	}()

	require.Len(t, rec.events, 1)
	assert.Equal(t, "/x", rec.events[0].Tags["path"])
}

func TestDroppedAndClosed(t *testing.T) {
	rec := &eventRecorder{drop: true}
	c := newTestClient(t, rec)

	c.CaptureError(errors.New("dropped"), nil)
	assert.EqualValues(t, 1, c.Stats().EventsDropped)

	require.NoError(t, c.Close())
	assert.ErrorIs(t, c.Close(), ErrClientClosed)

	c.CaptureError(errors.New("after close"), nil)
	assert.Len(t, rec.events, 1)
	assert.Equal(t, Stats{EventsTotal: 2, EventsDropped: 2}, c.Stats())
}
