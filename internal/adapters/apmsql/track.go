package apmsql

import (
	"context"
	"fmt"
	"regexp"

	node_client "github.com/gt-tallinn/node-client"
)

// SegmentType labels measurements recorded for SQL statements.
const SegmentType = "sql"

// Tracker is the subset of *node_client.Tracker the driver needs.
type Tracker interface {
	Start(p node_client.Params) error
	Stop(p node_client.Params) (*node_client.Delivery, error)
}

// A regular expression to find numbers in SQL queries.
// This is a simple approach and might not cover all SQL dialects perfectly.
var sqlNumberRegex = regexp.MustCompile(`\b\d+\b`)

// normalizeQuery replaces numeric literals in a SQL query with a placeholder,
// so "WHERE id = 1" and "WHERE id = 2" are reported under the same name.
func normalizeQuery(query string) string {
	return sqlNumberRegex.ReplaceAllString(query, "?")
}

// segmentName builds a context name unique within the request.
func segmentName(seq uint64, query string) string {
	return fmt.Sprintf("sql#%d %s", seq, normalizeQuery(query))
}

// track starts a measurement for query when ctx carries a request id and
// returns the function that stops it. Without a request it does nothing.
func track(ctx context.Context, tracker Tracker, query string) func() {
	id, ok := node_client.RequestIDFromContext(ctx)
	if !ok {
		return func() {}
	}

	p := node_client.Params{
		ID:      id,
		Context: segmentName(node_client.NextSegment(ctx), query),
		Type:    SegmentType,
	}
	// Segment names are unique per request, so Start only fails on a
	// malformed id; the query runs untracked in that case.
	if err := tracker.Start(p); err != nil {
		return func() {}
	}
	return func() {
		// Delivery failures are logged by the tracker.
		_, _ = tracker.Stop(p)
	}
}
