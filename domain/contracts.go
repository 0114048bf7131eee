package domain

import (
	"context"
	"time"

	"github.com/gt-tallinn/node-client/domain/measurement"
)

// Snapshot is a point-in-time, read-only copy of the tracker state served by
// the debug reporter.
type Snapshot struct {
	Pending  []measurement.Measurement           `json:"pending"`
	Delivery measurement.DeliveryMetricsSnapshot `json:"delivery"`
	Failures []measurement.FailureEvent          `json:"failures"`
}

// Table is the in-flight measurement table keyed by (request id, context).
// Implementations must make every method atomic with respect to the others.
type Table interface {
	// Insert records m, failing with ErrDuplicateMeasurement if the pair exists.
	Insert(m measurement.Measurement) error
	// MarkStopped sets StopTime on the pair, claims it for delivery and
	// returns the updated copy. It fails with ErrDeliveryInProgress while an
	// earlier claim is outstanding.
	MarkStopped(requestID, context string, stop int64) (measurement.Measurement, error)
	// Claim marks the pair as being delivered without touching its times.
	Claim(requestID, context string) (measurement.Measurement, error)
	// Release drops the claim on m after a failed delivery.
	Release(m measurement.Measurement) bool
	// Get returns a copy of the pair or ErrMeasurementNotFound.
	Get(requestID, context string) (measurement.Measurement, error)
	// Delete removes the pair and reports whether it existed.
	Delete(requestID, context string) bool
	// CompareAndDelete removes the pair only while it still holds m.
	CompareAndDelete(m measurement.Measurement) bool
	// Pending returns a copy of every in-flight measurement.
	Pending() []measurement.Measurement
}

// StoreReader defines the contract for reading reporter data.
type StoreReader interface {
	GetSnapshot() *Snapshot
}

// StoreWriter defines the contract for recording delivery outcomes.
type StoreWriter interface {
	AddDeliveryRequest(duration time.Duration, statusCode int)
	AddTransportError(duration time.Duration)
	AddFailure(event measurement.FailureEvent)
}

// Store is the combined interface for the tracker's local state.
type Store interface {
	Table
	StoreReader
	StoreWriter
}

// Sender submits a completed measurement to the collector.
type Sender interface {
	Add(ctx context.Context, payload measurement.Payload) error
}

// Clock is a monotonic nanosecond counter.
type Clock interface {
	Now() int64
}
