package database

import (
	"context"
	"database/sql/driver"
	"fmt"
)

// readOnlyConnector runs the dialect's session statement on every physical
// connection, so a redial after driver.ErrBadConn is read-only as well.
type readOnlyConnector struct {
	driver.Connector
	statement string
}

func (c *readOnlyConnector) Connect(ctx context.Context) (driver.Conn, error) {
	conn, err := c.Connector.Connect(ctx)
	if err != nil {
		return nil, err
	}
	if c.statement == "" {
		return conn, nil
	}
	execer, ok := conn.(driver.ExecerContext)
	if !ok {
		conn.Close()
		return nil, fmt.Errorf("%w: driver cannot execute %q", ErrUnsupported, c.statement)
	}
	if _, err := execer.ExecContext(ctx, c.statement, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to set read-only mode: %w", err)
	}
	return conn, nil
}

// dsnConnector adapts a driver without its own Connector.
type dsnConnector struct {
	driver driver.Driver
	dsn    string
}

func (c *dsnConnector) Connect(context.Context) (driver.Conn, error) {
	return c.driver.Open(c.dsn)
}

func (c *dsnConnector) Driver() driver.Driver { return c.driver }
