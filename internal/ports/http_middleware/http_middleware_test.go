package http_middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	node_client "github.com/gt-tallinn/node-client"
	"github.com/gt-tallinn/node-client/domain/measurement"
	"github.com/gt-tallinn/node-client/pkg/config"
)

func newTracker(t *testing.T) (*node_client.Tracker, func() []measurement.Payload) {
	var mu sync.Mutex
	var payloads []measurement.Payload

	collector := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p measurement.Payload
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&p))
		mu.Lock()
		payloads = append(payloads, p)
		mu.Unlock()
	}))
	t.Cleanup(collector.Close)

	tracker, err := node_client.New(&config.Config{ExplorerURI: collector.URL}, node_client.WithLogger(zerolog.Nop()))
	require.NoError(t, err)

	return tracker, func() []measurement.Payload {
		tracker.Wait()
		mu.Lock()
		defer mu.Unlock()
		return append([]measurement.Payload(nil), payloads...)
	}
}

func TestAPMMiddleware_MeasuresRequest(t *testing.T) {
	tracker, received := newTracker(t)

	seenID := make(chan string, 1)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, _ := node_client.RequestIDFromContext(r.Context())
		seenID <- id
		w.WriteHeader(http.StatusTeapot)
	})

	server := httptest.NewServer(APMMiddleware(tracker)(handler))
	defer server.Close()

	req, err := http.NewRequest(http.MethodGet, server.URL+"/api/v1/users", nil)
	require.NoError(t, err)
	req.Header.Set(RequestIDHeader, "req-42")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusTeapot, resp.StatusCode, "the handler's response is untouched")
	assert.Equal(t, "req-42", resp.Header.Get(RequestIDHeader))
	assert.Equal(t, "req-42", <-seenID)

	payloads := received()
	require.Len(t, payloads, 1)
	assert.Equal(t, "req-42", payloads[0].ID)
	assert.Equal(t, "GET /api/v1/users", payloads[0].Context)
	assert.Equal(t, SegmentType, payloads[0].Type)
	assert.GreaterOrEqual(t, payloads[0].Stop, payloads[0].Start)
	assert.Empty(t, tracker.Pending())
}

func TestAPMMiddleware_GeneratesRequestID(t *testing.T) {
	tracker, received := newTracker(t)

	handler := APMMiddleware(tracker)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rr1 := httptest.NewRecorder()
	handler.ServeHTTP(rr1, httptest.NewRequest(http.MethodGet, "/a", nil))
	rr2 := httptest.NewRecorder()
	handler.ServeHTTP(rr2, httptest.NewRequest(http.MethodGet, "/a", nil))

	id1, id2 := rr1.Header().Get(RequestIDHeader), rr2.Header().Get(RequestIDHeader)
	assert.NotEmpty(t, id1)
	assert.NotEqual(t, id1, id2, "each request gets its own id")
	assert.Len(t, received(), 2)
}

func TestAPMMiddleware_DuplicateRequestIsServed(t *testing.T) {
	tracker, _ := newTracker(t)
	require.NoError(t, tracker.Start(node_client.Params{ID: "req-1", Context: "GET /busy"}))

	called := false
	handler := APMMiddleware(tracker)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodGet, "/busy", nil)
	req.Header.Set(RequestIDHeader, "req-1")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.True(t, called, "tracker errors never block the request")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, tracker.Pending(), 1, "the earlier measurement is left alone")
}

func TestAPMMiddleware_NilTracker(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	handler := APMMiddleware(nil)(next)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}
