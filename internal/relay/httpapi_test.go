package relay

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jsoncodec "github.com/visiona/vlmrelay/internal/relay/jsoncodec"
	registrypkg "github.com/visiona/vlmrelay/internal/relay/registry"
)

func TestHandleHealth(t *testing.T) {
	svc := newTestService(t, nil)
	svc.Registry().Add(registrypkg.NewSubscriber("client-1", &recordingConn{}))

	rec := httptest.NewRecorder()
	svc.handleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var health HealthReport
	require.NoError(t, jsoncodec.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, ServiceName, health.Service)
	assert.Equal(t, "disconnected", health.RedisStatus)
	assert.Equal(t, 1, health.ConnectedClients)
}

func TestHandleStats(t *testing.T) {
	svc := newTestService(t, nil)

	rec := httptest.NewRecorder()
	svc.handleStats(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var stats ServiceStats
	require.NoError(t, jsoncodec.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 0, stats.ConnectedClients)
	assert.Equal(t, int64(0), stats.TotalMessagesProcessed)
	assert.False(t, stats.RedisConnected)
}

func TestHandleRoot(t *testing.T) {
	svc := newTestService(t, nil)

	rec := httptest.NewRecorder()
	svc.handleRoot(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	var info serviceInfo
	require.NoError(t, jsoncodec.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, ServiceName, info.Service)
	assert.Equal(t, "/ws", info.WebSocketEndpoint)
	assert.Equal(t, "/health", info.HealthCheck)
	assert.Equal(t, "/stats", info.Statistics)
}

func TestCORSHeaders(t *testing.T) {
	svc := newTestService(t, nil)

	t.Run("wildcard origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/stats", nil)
		req.Header.Set("Origin", "https://dashboard.example.com")
		rec := httptest.NewRecorder()

		svc.handleStats(rec, req)

		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("specific origin match", func(t *testing.T) {
		svc.Conf.CORSAllowedOrigins = []string{"https://dashboard.example.com"}
		req := httptest.NewRequest(http.MethodGet, "/stats", nil)
		req.Header.Set("Origin", "https://dashboard.example.com")
		rec := httptest.NewRecorder()

		svc.handleStats(rec, req)

		assert.Equal(t, "https://dashboard.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("origin not allowed", func(t *testing.T) {
		svc.Conf.CORSAllowedOrigins = []string{"https://dashboard.example.com"}
		req := httptest.NewRequest(http.MethodGet, "/stats", nil)
		req.Header.Set("Origin", "https://evil.example.com")
		rec := httptest.NewRecorder()

		svc.handleStats(rec, req)

		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("preflight", func(t *testing.T) {
		svc.Conf.CORSAllowedOrigins = []string{"*"}
		req := httptest.NewRequest(http.MethodOptions, "/stats", nil)
		req.Header.Set("Origin", "https://dashboard.example.com")
		rec := httptest.NewRecorder()

		svc.handleStats(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Empty(t, rec.Body.String())
	})
}
