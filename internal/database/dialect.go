package database

import (
	"database/sql/driver"
	"fmt"
	"strings"

	"github.com/shakram02/dbinspect-rpc/internal/config"
	"github.com/shakram02/dbinspect-rpc/internal/sqlguard"
)

// Query is a statement and its bind arguments.
type Query struct {
	SQL  string
	Args []any
}

// Dialect defines the contract for database-specific behavior.
// Each supported database (MySQL, PostgreSQL, SQLite) implements this interface.
//
// Query builders that take a table name filter on it only when it is
// non-empty. Builders that return ErrUnsupported tell the caller to fall back
// to an empty or synthesized answer.
type Dialect interface {
	// Flavor selects the SQL lexing and inspection rules.
	Flavor() sqlguard.Flavor

	// DriverName returns the database/sql driver name.
	DriverName() string

	// BuildDSN constructs a DSN from the connection fields of cfg.
	BuildDSN(cfg *config.Config) (string, error)

	// DatabaseName extracts the database/file name from a DSN string.
	DatabaseName(dsn string) string

	// DefaultSchema is the schema introspection uses when none is configured.
	DefaultSchema(databaseName string) string

	// Connector opens physical connections for dsn.
	Connector(dsn string) (driver.Connector, error)

	// ReadOnlySession is executed on every new connection before it is used.
	ReadOnlySession() string

	ListDatabasesQuery() Query
	ListTablesQuery(schema string) Query
	// ListViewsQuery selects view name and definition.
	ListViewsQuery(schema string) Query
	// ColumnsQuery selects the fields of Column in declaration order.
	ColumnsQuery(schema, table string) Query
	TableStatsQuery(schema string) Query
	IndexesQuery(schema, table string) Query
	ForeignKeysQuery(schema, table string) Query
	TriggersQuery(schema, table string) Query
	RoutinesQuery(schema string, includeFunctions bool) Query
	UsersQuery(serverVersion string) (Query, error)

	VersionQuery() Query
	ThreadsConnectedQuery() (Query, error)
	UptimeQuery() (Query, error)
	EnginesQuery() (Query, error)

	// TableDDLQuery selects the table name and its CREATE statement.
	TableDDLQuery(schema, table string) (Query, error)
	// ProcedureDefinitionQuery selects columns named like SHOW CREATE PROCEDURE.
	ProcedureDefinitionQuery(schema, name string) (Query, error)

	SampleQuery(schema, table string, limit int) Query
	ExplainPrefix() string

	// Classify returns ErrPermission or ErrConnection when err is a driver
	// error of that kind, nil otherwise.
	Classify(err error) error
}

// DialectFor returns the dialect for a configured database type.
func DialectFor(dbType string) (Dialect, error) {
	switch strings.ToLower(dbType) {
	case config.TypeMySQL:
		return &MySQLDialect{}, nil
	case config.TypePostgres, "postgresql":
		return &PostgresDialect{}, nil
	case config.TypeSQLite, "sqlite3":
		return &SQLiteDialect{}, nil
	default:
		return nil, fmt.Errorf("unsupported database type %q", dbType)
	}
}

// quoteIdent double-quotes an identifier, doubling embedded quotes.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
