package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zsiec/mediatime/internal/calc"
	"github.com/zsiec/mediatime/internal/config"
	"github.com/zsiec/mediatime/internal/health"
	"github.com/zsiec/mediatime/internal/logger"
	"github.com/zsiec/mediatime/internal/timeline"
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			HTTPPort:        0,
			ShutdownTimeout: time.Second,
			MaxBodyBytes:    1 << 16,
		},
	}
}

func newTestServer(t *testing.T, mutate func(*config.Config)) *Server {
	t.Helper()
	cfg := testConfig()
	if mutate != nil {
		mutate(cfg)
	}

	log := logrus.New()
	log.SetOutput(io.Discard)

	healthMgr := health.NewManager(logger.NewNullLogger())
	healthMgr.Register(health.ArithmeticChecker{})

	return New(cfg, logrus.NewEntry(log), Dependencies{
		Evaluator: calc.NewEvaluator(calc.DefaultOptions(), logger.NewNullLogger()),
		Timelines: timeline.NewService(
			timeline.NewMemoryStore(time.Minute, time.Minute),
			timeline.Options{MaxBufferedRanges: 8},
			logger.NewNullLogger(),
		),
		Health: healthMgr,
	})
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rr := httptest.NewRecorder()
	s.GetRouter().ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body), rr.Body.String())
	return body
}

// errorType returns error.type from an error response.
func errorType(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	body := decodeBody(t, rr)
	errObj, ok := body["error"].(map[string]interface{})
	require.True(t, ok, rr.Body.String())
	return errObj["type"].(string)
}

// counterValue reads a counter from the default registry. Missing series
// read as zero.
func counterValue(t *testing.T, name string, labelPairs ...string) float64 {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)

	want := make(map[string]string, len(labelPairs)/2)
	for i := 0; i+1 < len(labelPairs); i += 2 {
		want[labelPairs[i]] = labelPairs[i+1]
	}

	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	series:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if v, ok := want[lp.GetName()]; ok && v != lp.GetValue() {
					continue series
				}
			}
			return m.GetCounter().GetValue()
		}
	}
	return 0
}

func TestNew(t *testing.T) {
	s := newTestServer(t, nil)

	assert.NotNil(t, s.router)
	assert.NotNil(t, s.errorHandler)
	assert.Nil(t, s.http3Server, "no TLS files configured")
	assert.Nil(t, s.limiter)
	assert.IsType(t, &mux.Router{}, s.GetRouter())

	withTLS := newTestServer(t, func(cfg *config.Config) {
		cfg.Server.HTTP3Port = 8443
		cfg.Server.TLSCertFile = "cert.pem"
		cfg.Server.TLSKeyFile = "key.pem"
		cfg.Server.MaxIncomingStreams = 100
		cfg.RateLimit = config.RateLimitConfig{Enabled: true, RequestsPerSecond: 10, Burst: 5}
	})
	require.NotNil(t, withTLS.http3Server)
	assert.Equal(t, ":8443", withTLS.http3Server.Addr)
	assert.Equal(t, int64(100), withTLS.http3Server.QUICConfig.MaxIncomingStreams)
	assert.NotNil(t, withTLS.limiter)
}

func TestRouteRegistration(t *testing.T) {
	s := newTestServer(t, nil)

	routes := map[string]bool{}
	err := s.GetRouter().Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		tmpl, err := route.GetPathTemplate()
		if err != nil {
			return nil
		}
		methods, _ := route.GetMethods()
		for _, m := range methods {
			routes[m+" "+tmpl] = true
		}
		return nil
	})
	require.NoError(t, err)

	for _, want := range []string{
		"GET /health",
		"GET /ready",
		"GET /live",
		"GET /version",
		"GET /api/v1/operations",
		"POST /api/v1/time/eval",
		"GET /api/v1/time/parse",
		"GET /api/v1/timelines",
		"GET /api/v1/timelines/{id}",
		"DELETE /api/v1/timelines/{id}",
		"PUT /api/v1/timelines/{id}/position",
		"PUT /api/v1/timelines/{id}/duration",
		"POST /api/v1/timelines/{id}/buffered",
		"POST /api/v1/timelines/{id}/rtp",
		"POST /api/v1/timelines/{id}/rtcp",
	} {
		assert.True(t, routes[want], "missing route %s", want)
	}
	assert.False(t, routes["GET /debug/info"])
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t, nil)

	rr := do(t, s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	body := decodeBody(t, rr)
	assert.Equal(t, "ok", body["status"])
	assert.Contains(t, body["checks"], "arithmetic")

	rr = do(t, s, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = do(t, s, http.MethodGet, "/live", "")
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestHandleVersion(t *testing.T) {
	s := newTestServer(t, nil)

	rr := do(t, s, http.MethodGet, "/version", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.Equal(t, "public, max-age=3600", rr.Header().Get("Cache-Control"))
	assert.NotEmpty(t, decodeBody(t, rr)["version"])
}

func TestDebugEndpoints(t *testing.T) {
	s := newTestServer(t, func(cfg *config.Config) { cfg.Server.DebugEndpoints = true })

	rr := do(t, s, http.MethodGet, "/debug/info", "")
	require.Equal(t, http.StatusOK, rr.Code)
	body := decodeBody(t, rr)
	assert.Equal(t, true, body["debug_enabled"])
	assert.Contains(t, body, "log_sampling")

	disabled := newTestServer(t, nil)
	rr = do(t, disabled, http.MethodGet, "/debug/info", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestNotFoundAndMethodNotAllowed(t *testing.T) {
	s := newTestServer(t, nil)

	rr := do(t, s, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "NOT_FOUND", errorType(t, rr))

	rr = do(t, s, http.MethodDelete, "/api/v1/time/parse", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	assert.Equal(t, "METHOD_NOT_ALLOWED", errorType(t, rr))
}

func TestStartAndShutdown(t *testing.T) {
	s := newTestServer(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	// Give the listener a moment before stopping it.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestStartFailsWithoutCertificates(t *testing.T) {
	s := newTestServer(t, func(cfg *config.Config) {
		cfg.Server.HTTP3Port = 0
		cfg.Server.TLSCertFile = "/nonexistent/cert.pem"
		cfg.Server.TLSKeyFile = "/nonexistent/key.pem"
	})

	err := s.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load TLS certificates")
}
