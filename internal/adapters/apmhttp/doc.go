// Package apmhttp provides the HTTP client plumbing used to deliver
// measurements to the explorer. Its Transport wraps any http.RoundTripper
// and records the latency and status class of every exchange in the
// tracker's store, so the debug reporter can show how the collector behaves.
package apmhttp
