package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/lk2023060901/shardbazaar/pkg/logger"
	"github.com/lk2023060901/shardbazaar/pkg/web/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReporter struct {
	mu     sync.Mutex
	errs   []error
	panics []any
	tags   []map[string]string
}

func (r *fakeReporter) CaptureError(err error, tags map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
	r.tags = append(r.tags, tags)
}

func (r *fakeReporter) CapturePanic(rec any, tags map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.panics = append(r.panics, rec)
	r.tags = append(r.tags, tags)
}

func newEngine(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	e := gin.New()
	e.Use(Logger(logger.NewNoop()), Recovery(logger.NewNoop()))
	e.Use(handlers...)
	return e
}

func serve(e *gin.Engine, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestRecovery(t *testing.T) {
	e := newEngine()
	e.GET("/panic", func(*gin.Context) { panic("boom") })

	rec := serve(e, http.MethodGet, "/panic")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestReport(t *testing.T) {
	r := &fakeReporter{}
	e := newEngine(Report(r))
	e.GET("/items/:id", func(c *gin.Context) {
		_ = c.Error(errors.New("store down"))
		c.Status(http.StatusServiceUnavailable)
	})
	e.GET("/bad", func(c *gin.Context) {
		_ = c.Error(errors.New("bad input"))
		c.Status(http.StatusBadRequest)
	})
	e.GET("/panic", func(*gin.Context) { panic("kaboom") })

	assert.Equal(t, http.StatusServiceUnavailable, serve(e, http.MethodGet, "/items/7").Code)
	assert.Equal(t, http.StatusBadRequest, serve(e, http.MethodGet, "/bad").Code)
	assert.Equal(t, http.StatusInternalServerError, serve(e, http.MethodGet, "/panic").Code)

	require.Len(t, r.errs, 1)
	assert.EqualError(t, r.errs[0], "store down")
	require.Len(t, r.panics, 1)
	assert.Equal(t, "kaboom", r.panics[0])

	assert.Equal(t, "/items/:id", r.tags[0]["http.route"])
	assert.Equal(t, "503", r.tags[0]["http.status"])
	assert.Equal(t, "/panic", r.tags[1]["http.route"])
}

func TestMetrics(t *testing.T) {
	m := metrics.New("test")
	e := newEngine(Metrics(m))
	e.GET("/items/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	serve(e, http.MethodGet, "/items/1")
	serve(e, http.MethodGet, "/items/2")
	serve(e, http.MethodGet, "/missing")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("/items/:id", http.MethodGet, "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("unknown", http.MethodGet, "404")))
}
