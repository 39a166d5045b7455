package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/commundetect/internal/config"
	"github.com/3leaps/commundetect/internal/metrics"
	"github.com/3leaps/commundetect/internal/server/handlers"
	"github.com/3leaps/commundetect/pkg/jobqueue"
	"github.com/3leaps/commundetect/pkg/jobstore"
)

func newTestServer(t *testing.T, m *metrics.Metrics) *Server {
	t.Helper()

	cfg, err := config.Load("")
	require.NoError(t, err)

	store, err := jobstore.New(jobstore.Config{BasePath: t.TempDir()}, nil)
	require.NoError(t, err)

	var inst jobqueue.Instrumentation
	if m != nil {
		inst = m
	}
	manager := jobqueue.New(jobqueue.Config{Workers: 1, Command: "/bin/true"}, store, nil, inst)
	manager.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = manager.Stop(ctx)
	})

	h := handlers.New(manager, nil, "test", cfg.Status.DiskFullCutoff)
	return New(cfg, h, m, nil)
}

func do(t *testing.T, srv *Server, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestPreflightAdvertisesRouteMethods(t *testing.T) {
	srv := newTestServer(t, nil)

	cases := []struct {
		path    string
		methods string
	}{
		{"/cd/v1/", "POST, OPTIONS"},
		{"/cd/v1/status", "GET, OPTIONS"},
		{"/cd/v1/some-task-id", "GET, OPTIONS, DELETE"},
	}
	for _, tc := range cases {
		rec := do(t, srv, http.MethodOptions, tc.path)
		assert.Equal(t, http.StatusNoContent, rec.Code, tc.path)
		assert.Equal(t, tc.methods, rec.Header().Get("Access-Control-Allow-Methods"), tc.path)
	}
}

func TestRouteRegistration(t *testing.T) {
	srv := newTestServer(t, nil)

	t.Run("status endpoint responds", func(t *testing.T) {
		rec := do(t, srv, http.MethodGet, "/cd/v1/status")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "restVersion")
	})

	t.Run("unknown task id is not an HTTP error", func(t *testing.T) {
		rec := do(t, srv, http.MethodGet, "/cd/v1/no-such-task")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "notfound")
	})

	t.Run("paths outside the namespace 404", func(t *testing.T) {
		rec := do(t, srv, http.MethodGet, "/v1/status")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("unsupported verb 405s", func(t *testing.T) {
		rec := do(t, srv, http.MethodPut, "/cd/v1/some-task-id")
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}

func TestMetricsEndpoint(t *testing.T) {
	t.Run("mounted when metrics are enabled", func(t *testing.T) {
		srv := newTestServer(t, metrics.New())
		rec := do(t, srv, http.MethodGet, "/metrics")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "commundetect_jobs_submitted_total")
	})

	t.Run("absent when disabled", func(t *testing.T) {
		srv := newTestServer(t, nil)
		rec := do(t, srv, http.MethodGet, "/metrics")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestCORSHeadersOnSimpleRequest(t *testing.T) {
	srv := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/cd/v1/status", nil)
	req.Header.Set("Origin", "http://example.test")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
