package database

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/shakram02/dbinspect-rpc/internal/config"
	"github.com/shakram02/dbinspect-rpc/internal/sqlguard"
)

// SQLiteDialect implements Dialect for SQLite database files.
type SQLiteDialect struct{}

func (d *SQLiteDialect) Flavor() sqlguard.Flavor { return sqlguard.SQLite }
func (d *SQLiteDialect) DriverName() string      { return "sqlite" }
func (d *SQLiteDialect) ExplainPrefix() string   { return "EXPLAIN QUERY PLAN " }

// BuildDSN opens cfg.Name as a read-only URI with query_only set on every
// connection.
func (d *SQLiteDialect) BuildDSN(cfg *config.Config) (string, error) {
	if cfg.Name == "" {
		return "", fmt.Errorf("missing database file path")
	}
	return ReadOnlyDSN(cfg.Name), nil
}

// ReadOnlyDSN turns a file path or file: URI into a read-only DSN.
func ReadOnlyDSN(path string) string {
	dsn := path
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	if !strings.Contains(dsn, "mode=") {
		dsn += sep + "mode=ro"
		sep = "&"
	}
	return dsn + sep + "_pragma=query_only(1)"
}

func (d *SQLiteDialect) DatabaseName(dsn string) string {
	path := strings.TrimPrefix(dsn, "file:")
	if idx := strings.Index(path, "?"); idx != -1 {
		path = path[:idx]
	}
	name := filepath.Base(path)
	for _, ext := range []string{".db", ".sqlite3", ".sqlite"} {
		name = strings.TrimSuffix(name, ext)
	}
	return name
}

func (d *SQLiteDialect) DefaultSchema(string) string { return "main" }

func (d *SQLiteDialect) Connector(dsn string) (driver.Connector, error) {
	return &dsnConnector{driver: &sqlite.Driver{}, dsn: dsn}, nil
}

// ReadOnlySession repeats the query_only pragma for DSNs that did not go
// through ReadOnlyDSN.
func (d *SQLiteDialect) ReadOnlySession() string { return "PRAGMA query_only = ON" }

func (d *SQLiteDialect) ListDatabasesQuery() Query {
	return Query{SQL: `SELECT name FROM pragma_database_list ORDER BY seq`}
}

func (d *SQLiteDialect) ListTablesQuery(schema string) Query {
	return Query{
		SQL: `SELECT name FROM ` + quoteIdent(schema) + `.sqlite_master
			WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`,
	}
}

func (d *SQLiteDialect) ListViewsQuery(schema string) Query {
	return Query{
		SQL: `SELECT name, sql FROM ` + quoteIdent(schema) + `.sqlite_master
			WHERE type = 'view' ORDER BY name`,
	}
}

func (d *SQLiteDialect) ColumnsQuery(schema, table string) Query {
	q := `SELECT m.name, p.name, p.type,
			CASE WHEN p."notnull" = 1 THEN 'NO' ELSE 'YES' END,
			p.dflt_value,
			CASE WHEN p.pk > 0 THEN 'PRI' ELSE '' END,
			'', '', p.cid + 1, NULL, NULL, NULL
		FROM ` + quoteIdent(schema) + `.sqlite_master m
		JOIN pragma_table_info(m.name, ?) p
		WHERE m.type = 'table' AND m.name NOT LIKE 'sqlite_%'`
	args := []any{schema}
	if table != "" {
		q += ` AND m.name = ?`
		args = append(args, table)
	}
	return Query{SQL: q + ` ORDER BY m.name, p.cid`, Args: args}
}

func (d *SQLiteDialect) TableStatsQuery(schema string) Query {
	return Query{
		SQL: `SELECT name, 'sqlite', NULL, NULL, NULL, NULL, NULL, NULL
			FROM ` + quoteIdent(schema) + `.sqlite_master
			WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`,
	}
}

func (d *SQLiteDialect) IndexesQuery(schema, table string) Query {
	return Query{
		SQL: `SELECT il.name, ii.name, ii.seqno + 1,
				CASE WHEN il."unique" = 1 THEN 0 ELSE 1 END,
				'BTREE', NULL, NULL, NULL, NULL, NULL, ''
			FROM pragma_index_list(?, ?) il
			JOIN pragma_index_info(il.name, ?) ii
			ORDER BY il.name, ii.seqno`,
		Args: []any{table, schema, schema},
	}
}

// ForeignKeysQuery names constraints fk_<table>_<id>; SQLite does not keep
// constraint names in its catalog.
func (d *SQLiteDialect) ForeignKeysQuery(schema, table string) Query {
	q := `SELECT 'fk_' || m.name || '_' || p.id, m.name, p."from", p."table", p."to",
			p.on_update, p.on_delete
		FROM ` + quoteIdent(schema) + `.sqlite_master m
		JOIN pragma_foreign_key_list(m.name, ?) p
		WHERE m.type = 'table'`
	args := []any{schema}
	if table != "" {
		q += ` AND m.name = ?`
		args = append(args, table)
	}
	return Query{SQL: q + ` ORDER BY m.name, p.id, p.seq`, Args: args}
}

func (d *SQLiteDialect) TriggersQuery(schema, table string) Query {
	q := `SELECT name, NULL, tbl_name, NULL, sql, NULL
		FROM ` + quoteIdent(schema) + `.sqlite_master
		WHERE type = 'trigger'`
	var args []any
	if table != "" {
		q += ` AND tbl_name = ?`
		args = append(args, table)
	}
	return Query{SQL: q + ` ORDER BY tbl_name, name`, Args: args}
}

// RoutinesQuery selects nothing: SQLite has no stored routines.
func (d *SQLiteDialect) RoutinesQuery(string, bool) Query {
	return Query{SQL: `SELECT '', '', NULL, NULL WHERE 0`}
}

func (d *SQLiteDialect) UsersQuery(string) (Query, error) {
	return Query{}, ErrUnsupported
}

func (d *SQLiteDialect) VersionQuery() Query {
	return Query{SQL: "SELECT sqlite_version()"}
}

func (d *SQLiteDialect) ThreadsConnectedQuery() (Query, error) { return Query{}, ErrUnsupported }
func (d *SQLiteDialect) UptimeQuery() (Query, error)           { return Query{}, ErrUnsupported }
func (d *SQLiteDialect) EnginesQuery() (Query, error)          { return Query{}, ErrUnsupported }

func (d *SQLiteDialect) TableDDLQuery(schema, table string) (Query, error) {
	return Query{
		SQL: `SELECT name, sql FROM ` + quoteIdent(schema) + `.sqlite_master
			WHERE type IN ('table', 'view') AND name = ?`,
		Args: []any{table},
	}, nil
}

func (d *SQLiteDialect) ProcedureDefinitionQuery(string, string) (Query, error) {
	return Query{}, ErrUnsupported
}

func (d *SQLiteDialect) SampleQuery(schema, table string, limit int) Query {
	return Query{
		SQL:  "SELECT * FROM " + quoteIdent(schema) + "." + quoteIdent(table) + " LIMIT ?",
		Args: []any{limit},
	}
}

func (d *SQLiteDialect) Classify(err error) error {
	var liteErr *sqlite.Error
	if !errors.As(err, &liteErr) {
		return nil
	}
	switch liteErr.Code() & 0xff {
	case sqlite3.SQLITE_PERM, sqlite3.SQLITE_AUTH, sqlite3.SQLITE_READONLY:
		return ErrPermission
	case sqlite3.SQLITE_CANTOPEN, sqlite3.SQLITE_NOTADB:
		return ErrConnection
	}
	return nil
}
