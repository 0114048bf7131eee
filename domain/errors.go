package domain

import "errors"

// Error kinds surfaced by the tracker. Callers branch on them with errors.Is;
// the concrete error usually wraps one of these with the offending id/context.
var (
	// ErrConfiguration is returned when a tracker cannot be built from the
	// supplied configuration (missing or malformed explorer endpoint).
	ErrConfiguration = errors.New("configuration error")
	// ErrInvalidArgument is returned for a missing request id or context.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrDuplicateMeasurement is returned by Start when the pair is still in flight.
	ErrDuplicateMeasurement = errors.New("measurement already started")
	// ErrMeasurementNotFound is returned when no start was recorded for the pair.
	ErrMeasurementNotFound = errors.New("measurement not found")
	// ErrDeliveryInProgress is returned when the pair is already being
	// submitted; it can be stopped again once that delivery has failed.
	ErrDeliveryInProgress = errors.New("delivery in progress")
	// ErrDelivery wraps any failure to submit a measurement to the explorer.
	ErrDelivery = errors.New("delivery failed")
)
