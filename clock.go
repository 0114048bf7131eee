package node_client

import (
	"time"

	"github.com/gt-tallinn/node-client/domain"
)

// origin anchors the monotonic clock. time.Since uses the monotonic reading
// of origin, so wall-clock adjustments never affect measurements.
var origin = time.Now()

var _ domain.Clock = monotonicClock{}

// monotonicClock returns nanoseconds elapsed since process start.
type monotonicClock struct{}

func (monotonicClock) Now() int64 {
	return int64(time.Since(origin))
}
