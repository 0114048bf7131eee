package node_client

import (
	"context"
	"sync/atomic"
)

type scopeKey struct{}

// requestScope carries the request id through a context together with a
// counter used to name nested segments uniquely.
type requestScope struct {
	id  string
	seq atomic.Uint64
}

// WithRequestID returns a context that carries id as the current request.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, scopeKey{}, &requestScope{id: id})
}

// RequestIDFromContext returns the request id stored by WithRequestID.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	s, ok := ctx.Value(scopeKey{}).(*requestScope)
	if !ok || s == nil {
		return "", false
	}
	return s.id, true
}

// NextSegment returns a per-request sequence number starting at 1, or 0 if ctx
// carries no request.
func NextSegment(ctx context.Context) uint64 {
	s, ok := ctx.Value(scopeKey{}).(*requestScope)
	if !ok || s == nil {
		return 0
	}
	return s.seq.Add(1)
}
