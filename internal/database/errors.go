package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"net"
)

var (
	// ErrConnection marks a lost or unusable connection. Callers may retry.
	ErrConnection = errors.New("database connection failure")

	// ErrPermission marks a failure caused by missing privileges.
	ErrPermission = errors.New("insufficient privileges")

	// ErrUnsupported is returned for operations a dialect cannot serve.
	ErrUnsupported = errors.New("operation not supported by this database")
)

// classify tags err with ErrConnection or ErrPermission when the dialect or
// the transport says so. Unrecognised errors are returned unchanged.
func classify(d Dialect, err error) error {
	if err == nil || errors.Is(err, ErrConnection) || errors.Is(err, ErrPermission) {
		return err
	}
	if isConnectionError(err) {
		return fmt.Errorf("%w: %w", ErrConnection, err)
	}
	if tagged := d.Classify(err); tagged != nil {
		return fmt.Errorf("%w: %w", tagged, err)
	}
	return err
}

func isConnectionError(err error) bool {
	if errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.EOF) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
