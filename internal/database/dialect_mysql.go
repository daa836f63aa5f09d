package database

import (
	"database/sql/driver"
	"errors"
	"net"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/go-sql-driver/mysql"

	"github.com/shakram02/dbinspect-rpc/internal/config"
	"github.com/shakram02/dbinspect-rpc/internal/sqlguard"
)

// MySQLDialect implements Dialect for MySQL and MariaDB.
type MySQLDialect struct{}

func (d *MySQLDialect) Flavor() sqlguard.Flavor { return sqlguard.MySQL }
func (d *MySQLDialect) DriverName() string      { return "mysql" }
func (d *MySQLDialect) ExplainPrefix() string   { return "EXPLAIN " }

func (d *MySQLDialect) BuildDSN(cfg *config.Config) (string, error) {
	port := cfg.Port
	if port == 0 {
		port = 3306
	}
	c := mysql.NewConfig()
	c.User = cfg.User
	c.Passwd = cfg.Password
	c.Net = "tcp"
	c.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(port))
	c.DBName = cfg.Name
	return c.FormatDSN(), nil
}

func (d *MySQLDialect) DatabaseName(dsn string) string {
	c, err := mysql.ParseDSN(dsn)
	if err != nil {
		return ""
	}
	return c.DBName
}

func (d *MySQLDialect) DefaultSchema(databaseName string) string { return databaseName }

func (d *MySQLDialect) Connector(dsn string) (driver.Connector, error) {
	c, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, err
	}
	return mysql.NewConnector(c)
}

func (d *MySQLDialect) ReadOnlySession() string { return "SET SESSION TRANSACTION READ ONLY" }

func (d *MySQLDialect) ListDatabasesQuery() Query {
	return Query{SQL: "SHOW DATABASES"}
}

func (d *MySQLDialect) ListTablesQuery(schema string) Query {
	return Query{
		SQL:  `SELECT TABLE_NAME FROM information_schema.TABLES WHERE TABLE_SCHEMA = ? ORDER BY TABLE_NAME`,
		Args: []any{schema},
	}
}

func (d *MySQLDialect) ListViewsQuery(schema string) Query {
	return Query{
		SQL: `SELECT TABLE_NAME, VIEW_DEFINITION FROM information_schema.VIEWS
			WHERE TABLE_SCHEMA = ? ORDER BY TABLE_NAME`,
		Args: []any{schema},
	}
}

func (d *MySQLDialect) ColumnsQuery(schema, table string) Query {
	q := `SELECT TABLE_NAME, COLUMN_NAME, COLUMN_TYPE, IS_NULLABLE, COLUMN_DEFAULT,
			COLUMN_KEY, EXTRA, COLUMN_COMMENT, ORDINAL_POSITION,
			CHARACTER_MAXIMUM_LENGTH, NUMERIC_PRECISION, NUMERIC_SCALE
		FROM information_schema.COLUMNS
		WHERE TABLE_SCHEMA = ?`
	args := []any{schema}
	if table != "" {
		q += ` AND TABLE_NAME = ?`
		args = append(args, table)
	}
	return Query{SQL: q + ` ORDER BY TABLE_NAME, ORDINAL_POSITION`, Args: args}
}

func (d *MySQLDialect) TableStatsQuery(schema string) Query {
	return Query{
		SQL: `SELECT TABLE_NAME, ENGINE, TABLE_ROWS, DATA_LENGTH, INDEX_LENGTH, DATA_FREE,
				CAST(CREATE_TIME AS CHAR), CAST(UPDATE_TIME AS CHAR)
			FROM information_schema.TABLES
			WHERE TABLE_SCHEMA = ? ORDER BY TABLE_NAME`,
		Args: []any{schema},
	}
}

func (d *MySQLDialect) IndexesQuery(schema, table string) Query {
	return Query{
		SQL: `SELECT INDEX_NAME, COLUMN_NAME, SEQ_IN_INDEX, NON_UNIQUE, INDEX_TYPE, COLLATION,
				CARDINALITY, SUB_PART, PACKED, NULLABLE, INDEX_COMMENT
			FROM information_schema.STATISTICS
			WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ?
			ORDER BY INDEX_NAME, SEQ_IN_INDEX`,
		Args: []any{schema, table},
	}
}

func (d *MySQLDialect) ForeignKeysQuery(schema, table string) Query {
	q := `SELECT kcu.CONSTRAINT_NAME, kcu.TABLE_NAME, kcu.COLUMN_NAME,
			kcu.REFERENCED_TABLE_NAME, kcu.REFERENCED_COLUMN_NAME,
			rc.UPDATE_RULE, rc.DELETE_RULE
		FROM information_schema.KEY_COLUMN_USAGE kcu
		JOIN information_schema.REFERENTIAL_CONSTRAINTS rc
			ON rc.CONSTRAINT_SCHEMA = kcu.CONSTRAINT_SCHEMA
			AND rc.CONSTRAINT_NAME = kcu.CONSTRAINT_NAME
		WHERE kcu.TABLE_SCHEMA = ? AND kcu.REFERENCED_TABLE_NAME IS NOT NULL`
	args := []any{schema}
	if table != "" {
		q += ` AND kcu.TABLE_NAME = ?`
		args = append(args, table)
	}
	return Query{
		SQL:  q + ` ORDER BY kcu.TABLE_NAME, kcu.CONSTRAINT_NAME, kcu.ORDINAL_POSITION`,
		Args: args,
	}
}

func (d *MySQLDialect) TriggersQuery(schema, table string) Query {
	q := `SELECT TRIGGER_NAME, EVENT_MANIPULATION, EVENT_OBJECT_TABLE, ACTION_TIMING,
			ACTION_STATEMENT, CAST(CREATED AS CHAR)
		FROM information_schema.TRIGGERS
		WHERE TRIGGER_SCHEMA = ?`
	args := []any{schema}
	if table != "" {
		q += ` AND EVENT_OBJECT_TABLE = ?`
		args = append(args, table)
	}
	return Query{SQL: q + ` ORDER BY EVENT_OBJECT_TABLE, TRIGGER_NAME`, Args: args}
}

func (d *MySQLDialect) RoutinesQuery(schema string, includeFunctions bool) Query {
	q := `SELECT ROUTINE_NAME, ROUTINE_TYPE, CAST(CREATED AS CHAR), CAST(LAST_ALTERED AS CHAR)
		FROM information_schema.ROUTINES
		WHERE ROUTINE_SCHEMA = ?`
	if !includeFunctions {
		q += ` AND ROUTINE_TYPE = 'PROCEDURE'`
	}
	return Query{SQL: q + ` ORDER BY ROUTINE_TYPE, ROUTINE_NAME`, Args: []any{schema}}
}

// UsersQuery reads mysql.user. The account_locked column only exists from
// MySQL 5.7.6 on and not in MariaDB's compatibility view.
func (d *MySQLDialect) UsersQuery(serverVersion string) (Query, error) {
	locked := "'N'"
	if supportsAccountLocking(serverVersion) {
		locked = "IFNULL(account_locked, 'N')"
	}
	return Query{
		SQL: `SELECT User, Host, IFNULL(plugin, ''), ` + locked + `, IFNULL(password_expired, 'N')
			FROM mysql.user ORDER BY User, Host`,
	}, nil
}

var accountLocking = mustConstraint(">= 5.7.6")

func mustConstraint(c string) *semver.Constraints {
	parsed, err := semver.NewConstraint(c)
	if err != nil {
		panic(err)
	}
	return parsed
}

func supportsAccountLocking(version string) bool {
	if strings.Contains(strings.ToLower(version), "mariadb") {
		return false
	}
	// Distribution suffixes like "-0ubuntu0.22.04.1" are not valid semver.
	core := version
	if i := strings.IndexFunc(version, func(r rune) bool {
		return r != '.' && (r < '0' || r > '9')
	}); i >= 0 {
		core = version[:i]
	}
	v, err := semver.NewVersion(core)
	if err != nil {
		return false
	}
	return accountLocking.Check(v)
}

func (d *MySQLDialect) VersionQuery() Query {
	return Query{SQL: "SELECT VERSION()"}
}

func (d *MySQLDialect) ThreadsConnectedQuery() (Query, error) {
	return Query{SQL: "SHOW GLOBAL STATUS LIKE 'Threads_connected'"}, nil
}

func (d *MySQLDialect) UptimeQuery() (Query, error) {
	return Query{SQL: "SHOW GLOBAL STATUS LIKE 'Uptime'"}, nil
}

func (d *MySQLDialect) EnginesQuery() (Query, error) {
	return Query{SQL: "SHOW ENGINES"}, nil
}

func (d *MySQLDialect) TableDDLQuery(schema, table string) (Query, error) {
	return Query{SQL: "SHOW CREATE TABLE " + quoteMySQL(schema) + "." + quoteMySQL(table)}, nil
}

func (d *MySQLDialect) ProcedureDefinitionQuery(schema, name string) (Query, error) {
	return Query{SQL: "SHOW CREATE PROCEDURE " + quoteMySQL(schema) + "." + quoteMySQL(name)}, nil
}

func (d *MySQLDialect) SampleQuery(schema, table string, limit int) Query {
	return Query{
		SQL:  "SELECT * FROM " + quoteMySQL(schema) + "." + quoteMySQL(table) + " LIMIT ?",
		Args: []any{limit},
	}
}

// MySQL error numbers that mean the account lacks a privilege.
var mysqlPermissionErrors = map[uint16]bool{
	1044: true, // ER_DBACCESS_DENIED_ERROR
	1045: true, // ER_ACCESS_DENIED_ERROR
	1142: true, // ER_TABLEACCESS_DENIED_ERROR
	1143: true, // ER_COLUMNACCESS_DENIED_ERROR
	1227: true, // ER_SPECIFIC_ACCESS_DENIED_ERROR
	1370: true, // ER_PROCACCESS_DENIED_ERROR
}

func (d *MySQLDialect) Classify(err error) error {
	if errors.Is(err, mysql.ErrInvalidConn) {
		return ErrConnection
	}
	if mysqlPermissionErrors[mysqlErrorNumber(err)] {
		return ErrPermission
	}
	return nil
}

// mysqlErrorNumber returns the server error number carried by err, or 0.
// SHOW CREATE reports a missing object as 1146 (table) or 1305 (routine).
func mysqlErrorNumber(err error) uint16 {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number
	}
	return 0
}

func quoteMySQL(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}
