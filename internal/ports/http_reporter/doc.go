// Package http_reporter provides an HTTP handler exposing the tracker's local
// state in JSON format: measurements still waiting for delivery, delivery
// statistics for the explorer endpoint and the most recent delivery failures.
//
// It is meant for operators deciding what to do with measurements whose
// delivery failed.
package http_reporter
