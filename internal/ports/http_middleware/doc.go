// Package http_middleware provides HTTP middleware that times every incoming
// request as a measurement. Each request gets a request id, taken from the
// X-Request-Id header when present, which is placed in the request context so
// nested segments (SQL queries, outgoing calls) are reported under the same id.
//
// The middleware follows the standard func(http.Handler) http.Handler shape
// and can be used with any router.
package http_middleware
