package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	node_client "github.com/gt-tallinn/node-client"
	"github.com/gt-tallinn/node-client/pkg/config"
)

func TestNewMiddleware(t *testing.T) {
	collector := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer collector.Close()

	tracker, err := node_client.New(&config.Config{ExplorerURI: collector.URL}, node_client.WithLogger(zerolog.Nop()))
	require.NoError(t, err)

	handler := NewMiddleware(tracker, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, ok := node_client.RequestIDFromContext(r.Context())
		assert.True(t, ok)
	}), "demo")

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/demo", nil))
	tracker.Wait()

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.NotEmpty(t, rr.Header().Get(RequestIDHeader))
	assert.Empty(t, tracker.Pending())
}

func TestNewMiddleware_NilTracker(t *testing.T) {
	handler := NewMiddleware(nil, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}), "demo")

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/demo", nil))
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Empty(t, rr.Header().Get(RequestIDHeader))
}
