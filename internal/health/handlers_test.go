package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleHealth(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantCode   int
		wantStatus Status
	}{
		{"healthy", nil, http.StatusOK, StatusOK},
		{"degraded", &DegradedError{Reason: "slow"}, http.StatusOK, StatusDegraded},
		{"down", assert.AnError, http.StatusServiceUnavailable, StatusDown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			manager := newTestManager()
			manager.Register(&mockChecker{name: "test", err: tt.err})
			handler := NewHandler(manager)

			rr := httptest.NewRecorder()
			handler.HandleHealth(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tt.wantCode, rr.Code)
			assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
			assert.Equal(t, "no-cache, no-store, must-revalidate", rr.Header().Get("Cache-Control"))

			var response Response
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
			assert.Equal(t, tt.wantStatus, response.Status)
			assert.NotZero(t, response.Timestamp)
			assert.NotEmpty(t, response.Version)
			assert.NotEmpty(t, response.Uptime)
			assert.Contains(t, response.Checks, "test")
		})
	}
}

func TestHandleReady(t *testing.T) {
	manager := newTestManager()
	manager.Register(&mockChecker{name: "store", err: assert.AnError})
	handler := NewHandler(manager)

	// Nothing has run yet.
	rr := httptest.NewRecorder()
	handler.HandleReady(rr, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)

	manager.RunChecks(context.Background())
	rr = httptest.NewRecorder()
	handler.HandleReady(rr, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)

	var body struct {
		Status  Status   `json:"status"`
		Failing []string `json:"failing"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, StatusDown, body.Status)
	assert.Equal(t, []string{"store"}, body.Failing)

	healthy := newTestManager()
	healthy.Register(&mockChecker{name: "store"})
	healthy.RunChecks(context.Background())
	rr = httptest.NewRecorder()
	NewHandler(healthy).HandleReady(rr, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestHandleLive(t *testing.T) {
	handler := NewHandler(newTestManager())

	rr := httptest.NewRecorder()
	handler.HandleLive(rr, httptest.NewRequest(http.MethodGet, "/live", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "alive", body["status"])
}

func TestFormatUptime(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0 seconds"},
		{time.Second, "1 second"},
		{45 * time.Second, "45 seconds"},
		{time.Minute, "1 minute"},
		{time.Hour + 2*time.Second, "1 hour 2 seconds"},
		{26*time.Hour + 3*time.Minute + time.Second, "1 day 2 hours 3 minutes 1 second"},
		{72 * time.Hour, "3 days"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, formatUptime(tt.d))
		})
	}
}
