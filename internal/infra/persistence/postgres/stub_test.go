package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
)

// newStubDB returns a sql.DB backed by an in-process stub connection that
// understands the handful of statements the store issues.
func newStubDB() (*sql.DB, *stubConn) {
	conn := &stubConn{rows: map[string][]byte{}}
	return sql.OpenDB(stubConnector{conn: conn}), conn
}

type stubConnector struct {
	conn *stubConn
}

func (c stubConnector) Connect(context.Context) (driver.Conn, error) { return c.conn, nil }
func (c stubConnector) Driver() driver.Driver                        { return stubDriver{} }

type stubDriver struct{}

func (stubDriver) Open(string) (driver.Conn, error) {
	return nil, errors.New("stub driver opens through connector")
}

type stubConn struct {
	mu       sync.Mutex
	rows     map[string][]byte
	execs    []string
	failExec bool
}

func (c *stubConn) Prepare(string) (driver.Stmt, error) {
	return nil, errors.New("prepare not supported by stub")
}

func (c *stubConn) Close() error { return nil }

func (c *stubConn) Begin() (driver.Tx, error) { return stubTx{}, nil }

type stubTx struct{}

func (stubTx) Commit() error   { return nil }
func (stubTx) Rollback() error { return nil }

func (c *stubConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failExec {
		return nil, fmt.Errorf("stub exec failure")
	}
	c.execs = append(c.execs, query)
	switch {
	case strings.HasPrefix(query, "DELETE FROM scope_state"):
		c.rows = map[string][]byte{}
	case strings.HasPrefix(query, "INSERT INTO scope_state"):
		scope, _ := args[0].Value.(string)
		payload, _ := args[1].Value.([]byte)
		stored := make([]byte, len(payload))
		copy(stored, payload)
		c.rows[scope] = stored
	}
	return driver.RowsAffected(1), nil
}

func (c *stubConn) QueryContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Rows, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !strings.Contains(query, "scope_state") {
		return nil, fmt.Errorf("unexpected query %s", query)
	}
	rows := &stubRows{}
	for scope, payload := range c.rows {
		rows.data = append(rows.data, [2]driver.Value{scope, payload})
	}
	return rows, nil
}

// seed installs a scope payload directly, bypassing the store.
func (c *stubConn) seed(scope string, payload []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rows[scope] = payload
}

func (c *stubConn) scopes() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.rows))
	for scope := range c.rows {
		out = append(out, scope)
	}
	return out
}

func (c *stubConn) payload(scope string) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rows[scope]
}

type stubRows struct {
	data [][2]driver.Value
	pos  int
}

func (r *stubRows) Columns() []string { return []string{"scope", "payload"} }
func (r *stubRows) Close() error      { return nil }

func (r *stubRows) Next(dest []driver.Value) error {
	if r.pos >= len(r.data) {
		return io.EOF
	}
	dest[0] = r.data[r.pos][0]
	dest[1] = r.data[r.pos][1]
	r.pos++
	return nil
}
