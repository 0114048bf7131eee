package inmemory

import (
	"fmt"
	"sync"
	"time"

	"github.com/gt-tallinn/node-client/domain"
	"github.com/gt-tallinn/node-client/domain/measurement"
)

const (
	// Default buffer size for delivery failure events.
	defaultEventBufferSize = 100
)

// --- Store Implementation ---

// Store is a thread-safe in-memory table of in-flight measurements plus the
// delivery statistics served by the debug reporter.
// It implements the domain.Store interface.
var _ domain.Store = (*Store)(nil)

type Store struct {
	mu       sync.RWMutex
	table    map[string]map[string]*entry
	delivery measurement.DeliveryMetrics
	failures *ringBuffer[measurement.FailureEvent]
}

// entry is a table slot. delivering is set while a submission of m is in
// flight and cleared when it fails.
type entry struct {
	m          measurement.Measurement
	delivering bool
}

// NewStore creates and initializes a new Store.
func NewStore() *Store {
	return &Store{
		table:    make(map[string]map[string]*entry),
		failures: newRingBuffer[measurement.FailureEvent](defaultEventBufferSize),
	}
}

// Insert records a new in-flight measurement. The inner map for the request
// is created on first use.
func (s *Store) Insert(m measurement.Measurement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	contexts, ok := s.table[m.RequestID]
	if !ok {
		contexts = make(map[string]*entry)
		s.table[m.RequestID] = contexts
	}
	if _, dup := contexts[m.Context]; dup {
		return fmt.Errorf("%w: id=%q context=%q", domain.ErrDuplicateMeasurement, m.RequestID, m.Context)
	}

	contexts[m.Context] = &entry{m: m}
	return nil
}

// MarkStopped sets the stop time of a measurement and claims it for delivery.
// A measurement whose delivery is still in flight is left untouched.
func (s *Store) MarkStopped(requestID, context string, stop int64) (measurement.Measurement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.claimLocked(requestID, context)
	if err != nil {
		return measurement.Measurement{}, err
	}
	e.m.StopTime = stop
	return e.m, nil
}

// Claim marks a measurement as being delivered and returns a copy of it.
func (s *Store) Claim(requestID, context string) (measurement.Measurement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.claimLocked(requestID, context)
	if err != nil {
		return measurement.Measurement{}, err
	}
	return e.m, nil
}

// Release ends a failed delivery of m so the pair can be stopped again. It
// reports false when the pair now holds a different measurement.
func (s *Store) Release(m measurement.Measurement) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.matchLocked(m)
	if !ok {
		return false
	}
	e.delivering = false
	return true
}

// Get returns a copy of an in-flight measurement.
func (s *Store) Get(requestID, context string) (measurement.Measurement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, err := s.lookup(requestID, context)
	if err != nil {
		return measurement.Measurement{}, err
	}
	return e.m, nil
}

// Delete removes a measurement and reports whether it was present. The outer
// request entry is left in place even when it becomes empty.
func (s *Store) Delete(requestID, context string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	contexts, ok := s.table[requestID]
	if !ok {
		return false
	}
	if _, ok := contexts[context]; !ok {
		return false
	}
	delete(contexts, context)
	return true
}

// CompareAndDelete removes the pair only if it still holds exactly m.
func (s *Store) CompareAndDelete(m measurement.Measurement) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.matchLocked(m); !ok {
		return false
	}
	delete(s.table[m.RequestID], m.Context)
	return true
}

// Pending returns a copy of all in-flight measurements.
func (s *Store) Pending() []measurement.Measurement {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pendingLocked()
}

func (s *Store) pendingLocked() []measurement.Measurement {
	var out []measurement.Measurement
	for _, contexts := range s.table {
		for _, e := range contexts {
			out = append(out, e.m)
		}
	}
	return out
}

// lookup must be called with s.mu held.
func (s *Store) lookup(requestID, context string) (*entry, error) {
	if contexts, ok := s.table[requestID]; ok {
		if e, ok := contexts[context]; ok {
			return e, nil
		}
	}
	return nil, fmt.Errorf("%w: id=%q context=%q", domain.ErrMeasurementNotFound, requestID, context)
}

// claimLocked must be called with s.mu held for writing.
func (s *Store) claimLocked(requestID, context string) (*entry, error) {
	e, err := s.lookup(requestID, context)
	if err != nil {
		return nil, err
	}
	if e.delivering {
		return nil, fmt.Errorf("%w: id=%q context=%q", domain.ErrDeliveryInProgress, requestID, context)
	}
	e.delivering = true
	return e, nil
}

// matchLocked must be called with s.mu held.
func (s *Store) matchLocked(m measurement.Measurement) (*entry, bool) {
	e, err := s.lookup(m.RequestID, m.Context)
	if err != nil || e.m != m {
		return nil, false
	}
	return e, true
}

// AddDeliveryRequest records a completed HTTP exchange with the explorer.
func (s *Store) AddDeliveryRequest(duration time.Duration, statusCode int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.delivery.TotalRequests++
	s.delivery.TotalRequestTime += uint64(duration.Nanoseconds())

	switch {
	case statusCode >= 500:
		s.delivery.Status5xx++
	case statusCode >= 400:
		s.delivery.Status4xx++
	default:
		s.delivery.Status2xx++
	}
}

// AddTransportError records an exchange that never produced a response.
func (s *Store) AddTransportError(duration time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.delivery.TotalRequests++
	s.delivery.TotalRequestTime += uint64(duration.Nanoseconds())
	s.delivery.TransportErrors++
}

// AddFailure adds a delivery failure to the ring buffer.
func (s *Store) AddFailure(event measurement.FailureEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures.add(event)
}

// GetSnapshot returns a read-only copy of the current state.
func (s *Store) GetSnapshot() *domain.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var avgNs uint64
	if s.delivery.TotalRequests > 0 {
		avgNs = s.delivery.TotalRequestTime / s.delivery.TotalRequests
	}

	return &domain.Snapshot{
		Pending: s.pendingLocked(),
		Delivery: measurement.DeliveryMetricsSnapshot{
			TotalRequests:    s.delivery.TotalRequests,
			AvgRequestTimeNs: avgNs,
			AvgRequestTime:   time.Duration(avgNs).String(),
			Status2xx:        s.delivery.Status2xx,
			Status4xx:        s.delivery.Status4xx,
			Status5xx:        s.delivery.Status5xx,
			TransportErrors:  s.delivery.TransportErrors,
		},
		Failures: s.failures.getAll(),
	}
}

// --- Ring Buffer for Events ---

// ringBuffer is a generic, thread-unsafe circular buffer.
// The locking must be handled by the parent (Store).
type ringBuffer[T any] struct {
	buffer []T
	size   int
	start  int
	count  int
}

func newRingBuffer[T any](size int) *ringBuffer[T] {
	return &ringBuffer[T]{
		buffer: make([]T, size),
		size:   size,
	}
}

// add inserts an element into the buffer, overwriting the oldest if full.
func (rb *ringBuffer[T]) add(item T) {
	index := (rb.start + rb.count) % rb.size
	rb.buffer[index] = item
	if rb.count < rb.size {
		rb.count++
	} else {
		rb.start = (rb.start + 1) % rb.size
	}
}

// getAll returns all elements in the buffer in order.
func (rb *ringBuffer[T]) getAll() []T {
	if rb.count == 0 {
		return nil
	}
	items := make([]T, rb.count)
	for i := 0; i < rb.count; i++ {
		items[i] = rb.buffer[(rb.start+i)%rb.size]
	}
	return items
}
