package apmsql

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"sync"
)

// ---------------- Driver registration ----------------

var (
	driversMu sync.RWMutex
	drivers   = make(map[string]driver.Driver)
)

// Register wraps the provided driver so every statement executed with a
// request-scoped context is reported to tracker, and registers it in
// database/sql under the given name. Typical usage:
//
//	db, _ := sql.Open("sqlite3", ":memory:")
//	apmsql.Register("sqlite3-tracked", db.Driver(), tracker)
//	db, _ = sql.Open("sqlite3-tracked", ":memory:")
//
// Panics if the driver or tracker is nil or the name is already taken.
func Register(name string, d driver.Driver, tracker Tracker) {
	driversMu.Lock()
	defer driversMu.Unlock()

	if d == nil {
		panic("apmsql: Register driver is nil")
	}
	if tracker == nil {
		panic("apmsql: Register tracker is nil")
	}
	if _, dup := drivers[name]; dup {
		panic("apmsql: Register called twice for driver " + name)
	}

	drivers[name] = d
	sql.Register(name, &apmDriver{realDriver: d, tracker: tracker})
}

// ---------------- Driver wrappers ----------------

type apmDriver struct {
	realDriver driver.Driver
	tracker    Tracker
}

func (d *apmDriver) Open(name string) (driver.Conn, error) {
	conn, err := d.realDriver.Open(name)
	if err != nil {
		return nil, err
	}
	return &apmConn{realConn: conn, tracker: d.tracker}, nil
}

type apmConn struct {
	realConn driver.Conn
	tracker  Tracker
}

func (c *apmConn) Prepare(query string) (driver.Stmt, error) {
	stmt, err := c.realConn.Prepare(query)
	if err != nil {
		return nil, err
	}
	return &apmStmt{realStmt: stmt, query: query, tracker: c.tracker}, nil
}
func (c *apmConn) Close() error              { return c.realConn.Close() }
func (c *apmConn) Begin() (driver.Tx, error) { return c.realConn.Begin() }

// Context-aware exec/query
func (c *apmConn) QueryContext(ctx context.Context, q string, a []driver.NamedValue) (driver.Rows, error) {
	if qx, ok := c.realConn.(driver.QueryerContext); ok {
		stop := track(ctx, c.tracker, q)
		rows, err := qx.QueryContext(ctx, q, a)
		stop()
		return rows, err
	}
	return nil, driver.ErrSkip
}
func (c *apmConn) ExecContext(ctx context.Context, q string, a []driver.NamedValue) (driver.Result, error) {
	if ex, ok := c.realConn.(driver.ExecerContext); ok {
		stop := track(ctx, c.tracker, q)
		res, err := ex.ExecContext(ctx, q, a)
		stop()
		return res, err
	}
	return nil, driver.ErrSkip
}

type apmStmt struct {
	realStmt driver.Stmt
	query    string
	tracker  Tracker
}

func (s *apmStmt) Close() error                                    { return s.realStmt.Close() }
func (s *apmStmt) NumInput() int                                   { return s.realStmt.NumInput() }
func (s *apmStmt) Exec(args []driver.Value) (driver.Result, error) { return s.realStmt.Exec(args) }
func (s *apmStmt) Query(args []driver.Value) (driver.Rows, error)  { return s.realStmt.Query(args) }

func (s *apmStmt) ExecContext(ctx context.Context, args []driver.NamedValue) (driver.Result, error) {
	stop := track(ctx, s.tracker, s.query)
	defer stop()
	if ex, ok := s.realStmt.(driver.StmtExecContext); ok {
		return ex.ExecContext(ctx, args)
	}
	return s.realStmt.Exec(namedValueToValue(args))
}

func (s *apmStmt) QueryContext(ctx context.Context, args []driver.NamedValue) (driver.Rows, error) {
	stop := track(ctx, s.tracker, s.query)
	defer stop()
	if qx, ok := s.realStmt.(driver.StmtQueryContext); ok {
		return qx.QueryContext(ctx, args)
	}
	return s.realStmt.Query(namedValueToValue(args))
}

func namedValueToValue(named []driver.NamedValue) []driver.Value {
	vs := make([]driver.Value, len(named))
	for i, nv := range named {
		vs[i] = nv.Value
	}
	return vs
}
