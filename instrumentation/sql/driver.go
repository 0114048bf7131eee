package sql

import (
	"database/sql"
	"fmt"
	"sync"

	"github.com/XSAM/otelsql"

	node_client "github.com/gt-tallinn/node-client"
	"github.com/gt-tallinn/node-client/internal/adapters/apmsql"
)

var (
	registeredMu sync.Mutex
	registered   = make(map[string]bool)
)

// Open opens a traced database whose statements are also measured by tracker
// whenever they run with a context carrying a request id (see
// node_client.WithRequestID). opts configure the otelsql spans.
func Open(driverName, dataSourceName string, tracker *node_client.Tracker, opts ...otelsql.Option) (*sql.DB, error) {
	opts = append([]otelsql.Option{otelsql.WithAttributes()}, opts...)
	if tracker == nil {
		return otelsql.Open(driverName, dataSourceName, opts...)
	}

	name, err := wrappedDriver(driverName, tracker)
	if err != nil {
		return nil, err
	}
	return otelsql.Open(name, dataSourceName, opts...)
}

// wrappedDriver registers the tracked variant of driverName once per tracker.
func wrappedDriver(driverName string, tracker *node_client.Tracker) (string, error) {
	name := fmt.Sprintf("%s-node-client-%p", driverName, tracker)

	registeredMu.Lock()
	defer registeredMu.Unlock()
	if registered[name] {
		return name, nil
	}

	// sql.Open does not connect; it only resolves the driver.
	resolver, err := sql.Open(driverName, "")
	if err != nil {
		return "", err
	}
	realDriver := resolver.Driver()
	if err := resolver.Close(); err != nil {
		return "", err
	}

	apmsql.Register(name, realDriver, tracker)
	registered[name] = true
	return name, nil
}
