package router

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"geo-cluster-pipeline/pkg/logging"
)

func TestRouter_DispatchesWithParams(t *testing.T) {
	r := New(nil)
	r.GET("/runs/{id}", func(w http.ResponseWriter, req *http.Request) {
		_, _ = io.WriteString(w, "run="+Param(req, "id"))
	})

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs/abc", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "run=abc", rec.Body.String())
	assert.Contains(t, r.Routes(), "GET:/runs/{id}")
	assert.True(t, r.Paths()["/runs/{id}"])
}

func TestRouter_NotFoundAndMethodNotAllowed(t *testing.T) {
	r := New(nil)
	r.POST("/runs", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusAccepted) })

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRouter_LogsRequests(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	r := New(logging.NewLoggerFromCore(core))
	r.DELETE("/runs/{id}", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	})

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/runs/x", nil))

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, zapcore.WarnLevel, entry.Level)
	assert.Equal(t, "http", entry.LoggerName)
	assert.EqualValues(t, http.StatusNotFound, entry.ContextMap()["status"])
	assert.Equal(t, "/runs/x", entry.ContextMap()["path"])
}

func TestRouter_HandleMountsPlainHandler(t *testing.T) {
	r := New(nil)
	r.Handle("/metrics", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "ok")
	}))

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, "ok", rec.Body.String())
}

func TestRouter_RecoversFromPanic(t *testing.T) {
	r := New(nil)
	r.GET("/boom", func(http.ResponseWriter, *http.Request) { panic("boom") })

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
