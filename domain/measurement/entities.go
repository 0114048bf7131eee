package measurement

import (
	"time"
)

// DefaultType is used when a caller does not label the timed action.
const DefaultType = "unknown"

// Measurement is one timed execution segment of a request.
// StartTime and StopTime are monotonic nanosecond readings; they only make
// sense relative to each other and never carry calendar meaning.
type Measurement struct {
	RequestID string `json:"id"`
	Context   string `json:"context"`
	Type      string `json:"type"`
	StartTime int64  `json:"start"`
	StopTime  int64  `json:"stop,omitempty"` // zero until stopped
}

// Stopped reports whether Stop has been recorded.
func (m Measurement) Stopped() bool {
	return m.StopTime != 0
}

// Elapsed returns the measured duration, or zero while still running.
func (m Measurement) Elapsed() time.Duration {
	if !m.Stopped() {
		return 0
	}
	return time.Duration(m.StopTime - m.StartTime)
}

// Payload is the body POSTed to the explorer's /add endpoint.
type Payload struct {
	ID      string `json:"id"`
	Context string `json:"context"`
	Type    string `json:"type"`
	Start   int64  `json:"start"`
	Stop    int64  `json:"stop"`
}

// NewPayload builds the delivery payload for a stopped measurement.
func NewPayload(m Measurement) Payload {
	return Payload{
		ID:      m.RequestID,
		Context: m.Context,
		Type:    m.Type,
		Start:   m.StartTime,
		Stop:    m.StopTime,
	}
}

// --- Snapshot Structures (for reporting) ---

// FailureEvent records a delivery that did not reach the explorer.
type FailureEvent struct {
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"id"`
	Context   string    `json:"context"`
	Type      string    `json:"type"`
	Error     string    `json:"error"`
}

// DeliveryMetrics holds aggregated metrics for requests sent to the explorer.
type DeliveryMetrics struct {
	TotalRequests    uint64
	TotalRequestTime uint64 // nanoseconds
	Status2xx        uint64
	Status4xx        uint64
	Status5xx        uint64
	TransportErrors  uint64
}

// DeliveryMetricsSnapshot is a read-only copy of DeliveryMetrics.
type DeliveryMetricsSnapshot struct {
	TotalRequests    uint64 `json:"total_requests"`
	AvgRequestTimeNs uint64 `json:"avg_request_time_ns"`
	AvgRequestTime   string `json:"avg_request_time"`
	Status2xx        uint64 `json:"status_2xx"`
	Status4xx        uint64 `json:"status_4xx"`
	Status5xx        uint64 `json:"status_5xx"`
	TransportErrors  uint64 `json:"transport_errors"`
}
