package node_client

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/gt-tallinn/node-client/domain"
	"github.com/gt-tallinn/node-client/domain/measurement"
	"github.com/gt-tallinn/node-client/infrastructure/storage/inmemory"
	"github.com/gt-tallinn/node-client/internal/adapters/apmhttp"
	"github.com/gt-tallinn/node-client/internal/adapters/explorer"
	"github.com/gt-tallinn/node-client/internal/application/collector"
	"github.com/gt-tallinn/node-client/pkg/config"
)

// Params identifies a segment. Type is optional on Start and defaults to
// "unknown"; it is ignored on Stop.
type Params struct {
	ID      string
	Context string
	Type    string
}

// Tracker records start/stop pairs and reports completed measurements to the
// explorer. Each Tracker owns its table; trackers never share state.
type Tracker struct {
	cfg     config.Config
	store   *inmemory.Store
	sender  domain.Sender
	clock   domain.Clock
	log     zerolog.Logger
	tracer  trace.Tracer
	metrics *trackerMetrics

	inflight      conc.WaitGroup
	stopCollector func()
}

type options struct {
	clock      domain.Clock
	httpClient *http.Client
	sender     domain.Sender
	logger     *zerolog.Logger
	tp         trace.TracerProvider
	registerer prometheus.Registerer
}

// Option customises a Tracker.
type Option func(*options)

// WithClock replaces the monotonic clock, mainly for tests.
func WithClock(c domain.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithHTTPClient sets the client used to reach the explorer. Its transport is
// wrapped, the client itself is not modified.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithSender replaces the explorer client entirely.
func WithSender(s domain.Sender) Option {
	return func(o *options) { o.sender = s }
}

// WithLogger sets the logger. By default the tracker logs JSON to stderr at
// the configured level.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = &l }
}

// WithTracerProvider sets the provider for delivery spans. Defaults to the
// global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.tp = tp }
}

// WithRegisterer registers the tracker's Prometheus collectors with reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// New builds a Tracker. cfg is merged over config.Defaults and must name a
// usable explorer endpoint.
func New(cfg *config.Config, opts ...Option) (*Tracker, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: configuration is required", domain.ErrConfiguration)
	}
	merged, err := config.Merge(config.Defaults(), *cfg)
	if err != nil {
		return nil, err
	}
	if err := merged.Validate(); err != nil {
		return nil, err
	}
	level, err := zerolog.ParseLevel(merged.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("%w: log level %q: %v", domain.ErrConfiguration, merged.LogLevel, err)
	}

	o := options{clock: monotonicClock{}}
	for _, opt := range opts {
		opt(&o)
	}

	store := inmemory.NewStore()

	logger := zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()
	if o.logger != nil {
		logger = *o.logger
	}
	logger = logger.With().Str("component", "node-client").Str("service", merged.Service).Logger()

	sender := o.sender
	if sender == nil {
		sender = explorer.NewClient(merged.AddURL(), apmhttp.NewClient(o.httpClient, store))
	}

	tp := o.tp
	if tp == nil {
		tp = otel.GetTracerProvider()
	}

	t := &Tracker{
		cfg:           merged,
		store:         store,
		sender:        sender,
		clock:         o.clock,
		log:           logger,
		tracer:        tp.Tracer(instrumentationName),
		metrics:       newTrackerMetrics(o.registerer),
		stopCollector: func() {},
	}
	if merged.StaleAfter > 0 {
		t.stopCollector = collector.Start(store, o.clock, merged.CollectionInterval, merged.StaleAfter, logger)
	}
	return t, nil
}

// Config returns the effective configuration.
func (t *Tracker) Config() config.Config {
	return t.cfg
}

// Logger returns the tracker's logger so instrumentation can log alongside it.
func (t *Tracker) Logger() zerolog.Logger {
	return t.log
}

// Store exposes the tracker's local state for reporting.
func (t *Tracker) Store() domain.StoreReader {
	return t.store
}

// Start records the beginning of a segment.
func (t *Tracker) Start(p Params) error {
	if err := validate(p.ID, p.Context); err != nil {
		return err
	}
	typ := p.Type
	if typ == "" {
		typ = measurement.DefaultType
	}

	err := t.store.Insert(measurement.Measurement{
		RequestID: p.ID,
		Context:   p.Context,
		Type:      typ,
		StartTime: t.clock.Now(),
	})
	if err != nil {
		return err
	}
	t.metrics.pending.Inc()
	return nil
}

// Stop records the end of a segment and submits it to the explorer in the
// background. The returned Delivery settles with the outcome. While that
// delivery is in flight Stop fails with ErrDeliveryInProgress; once it has
// failed the measurement stays in place and calling Stop again re-submits it
// with a new stop time.
func (t *Tracker) Stop(p Params) (*Delivery, error) {
	if err := validate(p.ID, p.Context); err != nil {
		return nil, err
	}
	m, err := t.store.MarkStopped(p.ID, p.Context, t.clock.Now())
	if err != nil {
		return nil, err
	}
	return t.submit(context.Background(), m), nil
}

// Discard drops a segment without reporting it, e.g. after a failed delivery.
// Discarding an unknown segment is a no-op.
func (t *Tracker) Discard(p Params) error {
	return t.clear(p.ID, p.Context)
}

// Pending returns a copy of every measurement not yet delivered.
func (t *Tracker) Pending() []measurement.Measurement {
	return t.store.Pending()
}

// Wait blocks until every delivery started so far has settled.
func (t *Tracker) Wait() {
	t.inflight.Wait()
}

// Shutdown stops the stale measurement check and waits for outstanding
// deliveries until ctx ends.
func (t *Tracker) Shutdown(ctx context.Context) error {
	t.stopCollector()

	done := make(chan struct{})
	go func() {
		t.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		t.log.Warn().Int("pending", len(t.store.Pending())).Msg("shutdown before all deliveries settled")
		return ctx.Err()
	}
}

// flush submits a stopped measurement asynchronously.
func (t *Tracker) flush(ctx context.Context, requestID, contextName string) (*Delivery, error) {
	if err := validate(requestID, contextName); err != nil {
		return nil, err
	}
	m, err := t.store.Claim(requestID, contextName)
	if err != nil {
		return nil, err
	}
	return t.submit(ctx, m), nil
}

// submit delivers a claimed measurement in the background. A panicking
// sender fails the delivery instead of the process.
func (t *Tracker) submit(ctx context.Context, m measurement.Measurement) *Delivery {
	d := newDelivery()
	t.inflight.Go(func() {
		var err error
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("%w: id=%q context=%q: panic: %v", domain.ErrDelivery, m.RequestID, m.Context, r)
				t.fail(m, err)
			}
			d.resolve(err)
		}()
		err = t.deliver(ctx, m)
	})
	return d
}

func (t *Tracker) deliver(ctx context.Context, m measurement.Measurement) error {
	if t.cfg.DeliveryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.cfg.DeliveryTimeout)
		defer cancel()
	}

	ctx, span := t.tracer.Start(ctx, "explorer.flush",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("measurement.id", m.RequestID),
			attribute.String("measurement.context", m.Context),
			attribute.String("measurement.type", m.Type),
			attribute.Int64("measurement.elapsed_ns", int64(m.Elapsed())),
		),
	)
	defer span.End()

	start := time.Now()
	err := t.sender.Add(ctx, measurement.NewPayload(m))
	t.metrics.deliveryDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		err = fmt.Errorf("%w: id=%q context=%q: %w", domain.ErrDelivery, m.RequestID, m.Context, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		t.fail(m, err)
		return err
	}

	t.metrics.deliveries.WithLabelValues("success").Inc()
	// The pair may have been discarded and started again meanwhile; only the
	// delivered measurement is removed.
	if t.store.CompareAndDelete(m) {
		t.metrics.pending.Dec()
	}
	t.log.Debug().
		Str("id", m.RequestID).
		Str("context", m.Context).
		Dur("elapsed", m.Elapsed()).
		Msg("measurement delivered")
	return nil
}

// fail keeps m in the table for another Stop and records why it was not
// delivered.
func (t *Tracker) fail(m measurement.Measurement, err error) {
	t.store.Release(m)
	t.metrics.deliveries.WithLabelValues("failure").Inc()
	t.store.AddFailure(measurement.FailureEvent{
		Timestamp: time.Now(),
		RequestID: m.RequestID,
		Context:   m.Context,
		Type:      m.Type,
		Error:     err.Error(),
	})
	t.log.Error().Err(err).
		Str("id", m.RequestID).
		Str("context", m.Context).
		Str("type", m.Type).
		Msg("measurement delivery failed")
}

// clear removes a measurement; absent pairs are a no-op.
func (t *Tracker) clear(requestID, contextName string) error {
	if err := validate(requestID, contextName); err != nil {
		return err
	}
	if t.store.Delete(requestID, contextName) {
		t.metrics.pending.Dec()
	}
	return nil
}

func validate(requestID, contextName string) error {
	switch {
	case requestID == "":
		return fmt.Errorf("%w: id is required", domain.ErrInvalidArgument)
	case contextName == "":
		return fmt.Errorf("%w: context is required", domain.ErrInvalidArgument)
	}
	return nil
}
