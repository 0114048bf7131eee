package collector

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/gt-tallinn/node-client/domain"
	"github.com/gt-tallinn/node-client/domain/measurement"
)

type pairKey struct {
	requestID string
	context   string
	start     int64
}

// staleCollector periodically scans the measurement table and warns about
// measurements that have been pending longer than a threshold: segments that
// were never stopped, and stopped ones whose delivery failed or hangs.
type staleCollector struct {
	table     domain.Table
	clock     domain.Clock
	threshold time.Duration
	log       zerolog.Logger
	reported  map[pairKey]struct{}
}

// Start launches a background goroutine that checks the table every interval.
// It returns a function that stops the goroutine.
func Start(table domain.Table, clock domain.Clock, interval, threshold time.Duration, log zerolog.Logger) (stop func()) {
	c := newStaleCollector(table, clock, threshold, log)

	done := make(chan struct{})
	var once sync.Once
	ticker := time.NewTicker(interval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.check()
			case <-done:
				return
			}
		}
	}()

	return func() {
		once.Do(func() { close(done) })
	}
}

func newStaleCollector(table domain.Table, clock domain.Clock, threshold time.Duration, log zerolog.Logger) *staleCollector {
	return &staleCollector{
		table:     table,
		clock:     clock,
		threshold: threshold,
		log:       log,
		reported:  make(map[pairKey]struct{}),
	}
}

// check logs every newly stale measurement once and returns how many
// measurements are currently stale.
func (c *staleCollector) check() int {
	now := c.clock.Now()
	pending := c.table.Pending()

	seen := make(map[pairKey]struct{}, len(pending))
	stale := 0
	for _, m := range pending {
		key := pairKey{requestID: m.RequestID, context: m.Context, start: m.StartTime}
		seen[key] = struct{}{}

		age := time.Duration(now - m.StartTime)
		if age < c.threshold {
			continue
		}
		stale++
		if _, done := c.reported[key]; done {
			continue
		}
		c.reported[key] = struct{}{}
		c.warn(m, age)
	}

	// Forget pairs that were delivered or discarded.
	for key := range c.reported {
		if _, ok := seen[key]; !ok {
			delete(c.reported, key)
		}
	}
	return stale
}

func (c *staleCollector) warn(m measurement.Measurement, age time.Duration) {
	event := c.log.Warn().
		Str("id", m.RequestID).
		Str("context", m.Context).
		Str("type", m.Type).
		Dur("age", age)
	if m.Stopped() {
		event.Msg("measurement stopped but not delivered")
		return
	}
	event.Msg("measurement started but never stopped")
}
