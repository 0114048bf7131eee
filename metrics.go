package node_client

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "node_client"

type trackerMetrics struct {
	deliveries       *prometheus.CounterVec
	deliveryDuration prometheus.Histogram
	pending          prometheus.Gauge
}

// newTrackerMetrics builds the tracker's collectors and registers them with reg
// when it is non-nil. Trackers sharing a registerer share collectors.
func newTrackerMetrics(reg prometheus.Registerer) *trackerMetrics {
	m := &trackerMetrics{
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "deliveries_total",
			Help:      "Measurements submitted to the explorer, by result.",
		}, []string{"result"}),
		deliveryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "delivery_duration_seconds",
			Help:      "Time spent submitting a measurement to the explorer.",
			Buckets:   prometheus.DefBuckets,
		}),
		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "pending_measurements",
			Help:      "Measurements started but not yet delivered.",
		}),
	}
	if reg == nil {
		return m
	}

	m.deliveries = register(reg, m.deliveries)
	m.deliveryDuration = register(reg, m.deliveryDuration)
	m.pending = register(reg, m.pending)
	return m
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing
			}
		}
	}
	return c
}
