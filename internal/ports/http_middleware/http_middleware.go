package http_middleware

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	node_client "github.com/gt-tallinn/node-client"
)

// RequestIDHeader carries the request id in and out of the service.
const RequestIDHeader = "X-Request-Id"

// SegmentType labels measurements recorded by the middleware.
const SegmentType = "http"

// Tracker is the subset of *node_client.Tracker the middleware needs.
type Tracker interface {
	Start(p node_client.Params) error
	Stop(p node_client.Params) (*node_client.Delivery, error)
	Logger() zerolog.Logger
}

// APMMiddleware creates a new HTTP middleware that measures each request.
// Tracker errors are logged and never change the response.
func APMMiddleware(tracker Tracker) func(http.Handler) http.Handler {
	if tracker == nil {
		return func(next http.Handler) http.Handler {
			return next
		}
	}
	logger := tracker.Logger()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(RequestIDHeader)
			if id == "" {
				id = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, id)

			p := node_client.Params{
				ID:      id,
				Context: r.Method + " " + r.URL.Path,
				Type:    SegmentType,
			}
			started := true
			if err := tracker.Start(p); err != nil {
				logger.Warn().Err(err).Str("id", id).Str("context", p.Context).Msg("request not measured")
				started = false
			}

			next.ServeHTTP(w, r.WithContext(node_client.WithRequestID(r.Context(), id)))

			if !started {
				return
			}
			if _, err := tracker.Stop(p); err != nil {
				logger.Warn().Err(err).Str("id", id).Str("context", p.Context).Msg("request measurement not stopped")
			}
		})
	}
}
