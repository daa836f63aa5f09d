// Package database runs read-only introspection against MySQL, PostgreSQL
// and SQLite through a per-dialect query builder.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/shakram02/dbinspect-rpc/internal/sqlguard"
)

const logPrefix = "database:Open"

// ConnectionTimeout bounds the initial ping.
const ConnectionTimeout = 10 * time.Second

// Options tune an opened DB.
type Options struct {
	// Schema scopes introspection. Empty selects the dialect default.
	Schema string
	// QueryTimeout bounds each statement. Zero disables the bound.
	QueryTimeout time.Duration
	// MaxRows caps free-form and sample results.
	MaxRows int
	Logger  *slog.Logger
}

// DB is a single read-only connection plus the dialect that speaks to it.
// Requests are served one at a time, so the pool holds one connection. Every
// connection the pool dials runs the dialect's read-only session statement.
type DB struct {
	db           *sql.DB
	dialect      Dialect
	databaseName string
	schema       string
	queryTimeout time.Duration
	maxRows      int
	logger       *slog.Logger
}

// Open connects to dsn and verifies the connection. Each session is switched
// to read-only mode before first use.
func Open(ctx context.Context, dialect Dialect, dsn string, opts Options) (*DB, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	connector, err := dialect.Connector(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db := sql.OpenDB(&readOnlyConnector{Connector: connector, statement: dialect.ReadOnlySession()})
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pingCtx, pingCancel := context.WithTimeout(ctx, ConnectionTimeout)
	defer pingCancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", classify(dialect, err))
	}

	databaseName := dialect.DatabaseName(dsn)
	schema := opts.Schema
	if schema == "" {
		schema = dialect.DefaultSchema(databaseName)
	}
	maxRows := opts.MaxRows
	if maxRows <= 0 {
		maxRows = 10000
	}

	logger.Info(fmt.Sprintf("%s - connected", logPrefix),
		"driver", dialect.DriverName(), "database", databaseName, "schema", schema)

	return &DB{
		db:           db,
		dialect:      dialect,
		databaseName: databaseName,
		schema:       schema,
		queryTimeout: opts.QueryTimeout,
		maxRows:      maxRows,
		logger:       logger,
	}, nil
}

// Close releases the connection.
func (d *DB) Close() error { return d.db.Close() }

// Flavor reports the SQL flavor of the connected server.
func (d *DB) Flavor() sqlguard.Flavor { return d.dialect.Flavor() }

// Schema is the schema introspection runs against.
func (d *DB) Schema() string { return d.schema }

// DatabaseName is the database (or file) name taken from the DSN.
func (d *DB) DatabaseName() string { return d.databaseName }

func (d *DB) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.queryTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d.queryTimeout)
}

func (d *DB) fail(op string, err error) error {
	return fmt.Errorf("%s: %w", op, classify(d.dialect, err))
}

func (d *DB) each(ctx context.Context, q Query, fn func(*sql.Rows) error) error {
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, q.SQL, q.Args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		if err := fn(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

// collect runs q and scans every row with scan. The result is never nil.
func collect[T any](ctx context.Context, d *DB, op string, q Query, scan func(*sql.Rows) (T, error)) ([]T, error) {
	out := []T{}
	err := d.each(ctx, q, func(rows *sql.Rows) error {
		v, err := scan(rows)
		if err != nil {
			return err
		}
		out = append(out, v)
		return nil
	})
	if err != nil {
		return nil, d.fail(op, err)
	}
	return out, nil
}

// scanStrings scans a row of any width as nullable strings.
func scanStrings(rows *sql.Rows) ([]sql.NullString, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	values := make([]sql.NullString, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, err
	}
	return values, nil
}

func scanNamed(rows *sql.Rows) (map[string]*string, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	values, err := scanStrings(rows)
	if err != nil {
		return nil, err
	}
	out := make(map[string]*string, len(cols))
	for i, col := range cols {
		out[col] = stringPtr(values[i])
	}
	return out, nil
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func int64Ptr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

// toResult drains rows into a QueryResult, keeping at most maxRows rows.
// []byte values become strings.
func toResult(rows *sql.Rows, maxRows int) (*QueryResult, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	result := &QueryResult{Columns: columns, Rows: []map[string]any{}}
	for rows.Next() {
		if len(result.Rows) >= maxRows {
			result.Truncated = true
			break
		}

		values := make([]any, len(columns))
		valuePtrs := make([]any, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, err
		}

		row := make(map[string]any, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		result.Rows = append(result.Rows, row)
	}
	return result, rows.Err()
}
