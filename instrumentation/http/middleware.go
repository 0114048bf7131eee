package http

import (
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	node_client "github.com/gt-tallinn/node-client"
	"github.com/gt-tallinn/node-client/internal/ports/http_middleware"
)

// RequestIDHeader carries the request id in and out of the service.
const RequestIDHeader = http_middleware.RequestIDHeader

// NewMiddleware wraps handler so every request is measured by tracker and
// traced under operation. A nil tracker only adds tracing.
func NewMiddleware(tracker *node_client.Tracker, handler http.Handler, operation string) http.Handler {
	if tracker != nil {
		handler = http_middleware.APMMiddleware(tracker)(handler)
	}
	return otelhttp.NewHandler(handler, operation)
}
