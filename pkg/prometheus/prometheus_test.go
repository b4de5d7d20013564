package prometheus

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Defaults(t *testing.T) {
	c, err := New(nil)
	require.NoError(t, err)
	assert.Equal(t, "/metrics", c.Path())

	families, err := c.Registry().Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families, "go collector registered")
}

func TestNew_InvalidPath(t *testing.T) {
	_, err := New(&Config{Path: "metrics"})
	assert.Error(t, err)
}

func TestHandler_ExposesRegisteredMetrics(t *testing.T) {
	c, err := New(&Config{Path: "/metrics"})
	require.NoError(t, err)

	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_events_total", Help: "test"})
	require.NoError(t, c.Registry().Register(counter))
	counter.Add(3)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "test_events_total 3")
}
