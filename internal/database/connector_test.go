package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"testing"
)

type recordingConn struct {
	executed *[]string
	closed   *int
	execErr  error
}

func (c *recordingConn) Prepare(string) (driver.Stmt, error) { return nil, errors.New("not implemented") }
func (c *recordingConn) Close() error                        { *c.closed++; return nil }
func (c *recordingConn) Begin() (driver.Tx, error)           { return nil, errors.New("not implemented") }

func (c *recordingConn) ExecContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Result, error) {
	*c.executed = append(*c.executed, query)
	if c.execErr != nil {
		return nil, c.execErr
	}
	return driver.RowsAffected(0), nil
}

type recordingConnector struct {
	executed []string
	dials    int
	closed   int
	execErr  error
}

func (c *recordingConnector) Connect(context.Context) (driver.Conn, error) {
	c.dials++
	return &recordingConn{executed: &c.executed, closed: &c.closed, execErr: c.execErr}, nil
}

func (c *recordingConnector) Driver() driver.Driver { return nil }

func TestReadOnlyConnector_EveryConnection(t *testing.T) {
	inner := &recordingConnector{}
	c := &readOnlyConnector{Connector: inner, statement: "SET SESSION TRANSACTION READ ONLY"}

	for i := 0; i < 2; i++ {
		conn, err := c.Connect(context.Background())
		if err != nil {
			t.Fatalf("Connect %d: %v", i, err)
		}
		conn.Close()
	}

	if len(inner.executed) != 2 {
		t.Fatalf("Expected the session statement on both connections, got %v", inner.executed)
	}
	for _, stmt := range inner.executed {
		if stmt != "SET SESSION TRANSACTION READ ONLY" {
			t.Errorf("Unexpected statement %q", stmt)
		}
	}
}

func TestReadOnlyConnector_RedialAfterBadConn(t *testing.T) {
	inner := &recordingConnector{}
	db := sql.OpenDB(&readOnlyConnector{Connector: inner, statement: "SET x"})
	defer db.Close()
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(0)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		conn, err := db.Conn(ctx)
		if err != nil {
			t.Fatalf("Conn %d: %v", i, err)
		}
		conn.Close()
	}

	if inner.dials != 3 || len(inner.executed) != 3 {
		t.Errorf("Expected 3 dials each running the statement, got %d dials and %v", inner.dials, inner.executed)
	}
}

func TestReadOnlyConnector_StatementFails(t *testing.T) {
	inner := &recordingConnector{execErr: errors.New("permission denied")}
	c := &readOnlyConnector{Connector: inner, statement: "SET x"}

	conn, err := c.Connect(context.Background())
	if err == nil {
		conn.Close()
		t.Fatal("Expected Connect to fail when the session cannot be made read-only")
	}
	if inner.closed != 1 {
		t.Errorf("Expected the connection to be closed, closed=%d", inner.closed)
	}
}

func TestReadOnlyConnector_EmptyStatement(t *testing.T) {
	inner := &recordingConnector{}
	c := &readOnlyConnector{Connector: inner}

	conn, err := c.Connect(context.Background())
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	conn.Close()
	if len(inner.executed) != 0 {
		t.Errorf("Expected no statements, got %v", inner.executed)
	}
}
