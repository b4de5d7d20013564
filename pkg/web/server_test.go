package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/lk2023060901/shardbazaar/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoRequest struct {
	PlayerID string `json:"player_id" binding:"required"`
	Price    int64  `json:"price" binding:"gte=1"`
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s, err := NewServer(&Config{Addr: "127.0.0.1:0", Mode: gin.TestMode}, logger.NewNoop())
	require.NoError(t, err)
	s.Router().POST("/echo", func(c *gin.Context) {
		var req echoRequest
		if !BindAndValidate(c, &req) {
			return
		}
		Success(c, req)
	})
	return s
}

func TestNewServer_InvalidMode(t *testing.T) {
	_, err := NewServer(&Config{Mode: "verbose"}, nil)
	assert.Error(t, err)
}

func TestBindAndValidate(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"ok", `{"player_id":"alice","price":5}`, http.StatusOK, CodeOK},
		{"missing field", `{"price":5}`, http.StatusBadRequest, CodeInvalidParams},
		{"bad price", `{"player_id":"alice","price":0}`, http.StatusBadRequest, CodeInvalidParams},
		{"malformed", `{`, http.StatusBadRequest, CodeInvalidParams},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			var resp Response
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.code, resp.Code)
		})
	}
}

func TestValidationErrorsUseJSONNames(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(`{"price":5}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Contains(t, rec.Body.String(), "player_id")
}

func TestStartStop(t *testing.T) {
	s := newTestServer(t)
	assert.ErrorIs(t, s.Stop(), ErrServerNotStarted)

	require.NoError(t, s.Start())
	assert.ErrorIs(t, s.Start(), ErrServerAlreadyStarted)

	resp, err := http.Post("http://"+s.Addr()+"/echo", "application/json", strings.NewReader(`{"player_id":"bob","price":1}`))
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, s.Stop())
}
