package observer

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ehudso7/vrux-observe/pkg/logger"
	"github.com/ehudso7/vrux-observe/pkg/models"
)

func newTestStatusServer(t *testing.T, apiKey string) *statusServer {
	t.Helper()

	o := newTestObserver(t, nil)

	return newStatusServer("127.0.0.1:0", apiKey, o.health, logger.NewTestLogger())
}

func doRequest(s *statusServer, method, target string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(rec, req)

	return rec
}

func TestHealthzIsUnauthenticated(t *testing.T) {
	s := newTestStatusServer(t, "s3cret")

	rec := doRequest(s, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestStatusRequiresAPIKey(t *testing.T) {
	s := newTestStatusServer(t, "s3cret")

	assert.Equal(t, http.StatusUnauthorized, doRequest(s, http.MethodGet, "/api/status", nil).Code)
	assert.Equal(t, http.StatusUnauthorized,
		doRequest(s, http.MethodGet, "/api/status", map[string]string{"X-API-Key": "wrong"}).Code)
	assert.Equal(t, http.StatusOK,
		doRequest(s, http.MethodGet, "/api/status", map[string]string{"X-API-Key": "s3cret"}).Code)
}

func TestStatusAcceptsQueryParameterKey(t *testing.T) {
	s := newTestStatusServer(t, "s3cret")

	assert.Equal(t, http.StatusOK, doRequest(s, http.MethodGet, "/api/status?api_key=s3cret", nil).Code)
}

func TestStatusOpenWithoutConfiguredKey(t *testing.T) {
	s := newTestStatusServer(t, "")

	assert.Equal(t, http.StatusOK, doRequest(s, http.MethodGet, "/api/status", nil).Code)
}

func TestStatusPayload(t *testing.T) {
	s := newTestStatusServer(t, "")

	rec := doRequest(s, http.MethodGet, "/api/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var snap models.HealthSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))

	assert.Equal(t, 100.0, snap.Score)
	assert.Equal(t, models.HealthStatusHealthy, snap.Status)
	assert.False(t, snap.Timestamp.IsZero())
	assert.Contains(t, snap.Providers, "datadog")
}

func TestStatusRejectsOtherMethods(t *testing.T) {
	s := newTestStatusServer(t, "")

	assert.Equal(t, http.StatusMethodNotAllowed, doRequest(s, http.MethodPost, "/api/status", nil).Code)
}
