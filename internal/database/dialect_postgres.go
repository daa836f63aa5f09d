package database

import (
	"database/sql/driver"
	"errors"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/lib/pq"

	"github.com/shakram02/dbinspect-rpc/internal/config"
	"github.com/shakram02/dbinspect-rpc/internal/sqlguard"
)

// PostgresDialect implements Dialect for PostgreSQL databases.
type PostgresDialect struct{}

func (d *PostgresDialect) Flavor() sqlguard.Flavor { return sqlguard.Postgres }
func (d *PostgresDialect) DriverName() string      { return "postgres" }
func (d *PostgresDialect) ExplainPrefix() string   { return "EXPLAIN " }

func (d *PostgresDialect) BuildDSN(cfg *config.Config) (string, error) {
	port := cfg.Port
	if port == 0 {
		port = 5432
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(cfg.User, cfg.Password),
		Host:   net.JoinHostPort(cfg.Host, strconv.Itoa(port)),
		Path:   "/" + cfg.Name,
	}
	if cfg.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {cfg.SSLMode}}.Encode()
	}
	return u.String(), nil
}

// DatabaseName accepts both URL and key=value connection strings.
func (d *PostgresDialect) DatabaseName(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		converted, err := pq.ParseURL(dsn)
		if err != nil {
			return ""
		}
		dsn = converted
	}
	for _, field := range strings.Fields(dsn) {
		key, value, ok := strings.Cut(field, "=")
		if ok && key == "dbname" {
			return strings.Trim(value, "'")
		}
	}
	return ""
}

func (d *PostgresDialect) DefaultSchema(string) string { return "public" }

func (d *PostgresDialect) Connector(dsn string) (driver.Connector, error) {
	return pq.NewConnector(dsn)
}

func (d *PostgresDialect) ReadOnlySession() string {
	return "SET SESSION CHARACTERISTICS AS TRANSACTION READ ONLY"
}

func (d *PostgresDialect) ListDatabasesQuery() Query {
	return Query{SQL: `SELECT datname FROM pg_database WHERE NOT datistemplate ORDER BY datname`}
}

func (d *PostgresDialect) ListTablesQuery(schema string) Query {
	return Query{
		SQL:  `SELECT table_name FROM information_schema.tables WHERE table_schema = $1 ORDER BY table_name`,
		Args: []any{schema},
	}
}

func (d *PostgresDialect) ListViewsQuery(schema string) Query {
	return Query{
		SQL: `SELECT table_name, view_definition FROM information_schema.views
			WHERE table_schema = $1 ORDER BY table_name`,
		Args: []any{schema},
	}
}

func (d *PostgresDialect) ColumnsQuery(schema, table string) Query {
	q := `SELECT c.table_name, c.column_name,
			CASE WHEN c.character_maximum_length IS NOT NULL
				THEN c.data_type || '(' || c.character_maximum_length || ')'
				ELSE c.data_type END,
			c.is_nullable, c.column_default,
			COALESCE((
				SELECT CASE tc.constraint_type WHEN 'PRIMARY KEY' THEN 'PRI' ELSE 'UNI' END
				FROM information_schema.key_column_usage k
				JOIN information_schema.table_constraints tc
					ON tc.constraint_schema = k.constraint_schema
					AND tc.constraint_name = k.constraint_name
				WHERE k.table_schema = c.table_schema
					AND k.table_name = c.table_name
					AND k.column_name = c.column_name
					AND tc.constraint_type IN ('PRIMARY KEY', 'UNIQUE')
				ORDER BY tc.constraint_type LIMIT 1), ''),
			CASE WHEN c.is_identity = 'YES' THEN 'identity'
				WHEN c.is_generated = 'ALWAYS' THEN 'generated'
				ELSE '' END,
			COALESCE(col_description(format('%I.%I', c.table_schema, c.table_name)::regclass,
				c.ordinal_position::int), ''),
			c.ordinal_position, c.character_maximum_length, c.numeric_precision, c.numeric_scale
		FROM information_schema.columns c
		WHERE c.table_schema = $1`
	args := []any{schema}
	if table != "" {
		q += ` AND c.table_name = $2`
		args = append(args, table)
	}
	return Query{SQL: q + ` ORDER BY c.table_name, c.ordinal_position`, Args: args}
}

func (d *PostgresDialect) TableStatsQuery(schema string) Query {
	return Query{
		SQL: `SELECT s.relname, (SELECT amname FROM pg_am WHERE oid = c.relam),
				s.n_live_tup, pg_relation_size(s.relid), pg_indexes_size(s.relid),
				NULL::bigint, NULL::text,
				GREATEST(s.last_analyze, s.last_autoanalyze)::text
			FROM pg_stat_user_tables s
			JOIN pg_class c ON c.oid = s.relid
			WHERE s.schemaname = $1
			ORDER BY s.relname`,
		Args: []any{schema},
	}
}

func (d *PostgresDialect) IndexesQuery(schema, table string) Query {
	return Query{
		SQL: `SELECT i.relname, a.attname, k.ord,
				CASE WHEN ix.indisunique THEN 0 ELSE 1 END,
				upper(am.amname), NULL::text, NULL::bigint, NULL::bigint, NULL::text,
				CASE WHEN a.attnotnull THEN '' ELSE 'YES' END,
				COALESCE(obj_description(i.oid, 'pg_class'), '')
			FROM pg_index ix
			JOIN pg_class t ON t.oid = ix.indrelid
			JOIN pg_class i ON i.oid = ix.indexrelid
			JOIN pg_namespace n ON n.oid = t.relnamespace
			JOIN pg_am am ON am.oid = i.relam
			CROSS JOIN LATERAL unnest(ix.indkey::int2[]) WITH ORDINALITY AS k(attnum, ord)
			JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = k.attnum
			WHERE n.nspname = $1 AND t.relname = $2
			ORDER BY i.relname, k.ord`,
		Args: []any{schema, table},
	}
}

func (d *PostgresDialect) ForeignKeysQuery(schema, table string) Query {
	q := `SELECT tc.constraint_name, tc.table_name, kcu.column_name,
			ccu.table_name, ccu.column_name, rc.update_rule, rc.delete_rule
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON kcu.constraint_schema = tc.constraint_schema
			AND kcu.constraint_name = tc.constraint_name
		JOIN information_schema.referential_constraints rc
			ON rc.constraint_schema = tc.constraint_schema
			AND rc.constraint_name = tc.constraint_name
		JOIN information_schema.key_column_usage ccu
			ON ccu.constraint_schema = rc.unique_constraint_schema
			AND ccu.constraint_name = rc.unique_constraint_name
			AND ccu.ordinal_position = kcu.position_in_unique_constraint
		WHERE tc.constraint_type = 'FOREIGN KEY' AND tc.table_schema = $1`
	args := []any{schema}
	if table != "" {
		q += ` AND tc.table_name = $2`
		args = append(args, table)
	}
	return Query{
		SQL:  q + ` ORDER BY tc.table_name, tc.constraint_name, kcu.ordinal_position`,
		Args: args,
	}
}

func (d *PostgresDialect) TriggersQuery(schema, table string) Query {
	q := `SELECT trigger_name, event_manipulation, event_object_table, action_timing,
			action_statement, created::text
		FROM information_schema.triggers
		WHERE trigger_schema = $1`
	args := []any{schema}
	if table != "" {
		q += ` AND event_object_table = $2`
		args = append(args, table)
	}
	return Query{SQL: q + ` ORDER BY event_object_table, trigger_name`, Args: args}
}

func (d *PostgresDialect) RoutinesQuery(schema string, includeFunctions bool) Query {
	kinds := []string{"PROCEDURE"}
	if includeFunctions {
		kinds = append(kinds, "FUNCTION")
	}
	return Query{
		SQL: `SELECT routine_name, routine_type, NULL::text, NULL::text
			FROM information_schema.routines
			WHERE routine_schema = $1 AND routine_type = ANY($2)
			ORDER BY routine_type, routine_name`,
		Args: []any{schema, pq.Array(kinds)},
	}
}

// UsersQuery reads login roles from pg_roles. Roles without LOGIN are
// reported as locked.
func (d *PostgresDialect) UsersQuery(string) (Query, error) {
	return Query{
		SQL: `SELECT rolname, '%', '',
				CASE WHEN rolcanlogin THEN 'N' ELSE 'Y' END,
				CASE WHEN rolvaliduntil IS NOT NULL AND rolvaliduntil < now() THEN 'Y' ELSE 'N' END
			FROM pg_roles
			WHERE rolname NOT LIKE 'pg\_%'
			ORDER BY rolname`,
	}, nil
}

func (d *PostgresDialect) VersionQuery() Query {
	return Query{SQL: "SHOW server_version"}
}

func (d *PostgresDialect) ThreadsConnectedQuery() (Query, error) {
	return Query{SQL: "SELECT count(*)::text FROM pg_stat_activity"}, nil
}

func (d *PostgresDialect) UptimeQuery() (Query, error) {
	return Query{SQL: "SELECT EXTRACT(EPOCH FROM now() - pg_postmaster_start_time())::bigint::text"}, nil
}

func (d *PostgresDialect) EnginesQuery() (Query, error) {
	return Query{}, ErrUnsupported
}

// TableDDLQuery is unsupported: PostgreSQL has no SHOW CREATE TABLE, so the
// statement is synthesized from column metadata.
func (d *PostgresDialect) TableDDLQuery(string, string) (Query, error) {
	return Query{}, ErrUnsupported
}

func (d *PostgresDialect) ProcedureDefinitionQuery(schema, name string) (Query, error) {
	return Query{
		SQL: `SELECT p.proname AS "Procedure", pg_get_functiondef(p.oid) AS "Create Procedure"
			FROM pg_proc p
			JOIN pg_namespace n ON n.oid = p.pronamespace
			WHERE n.nspname = $1 AND p.proname = $2 AND p.prokind = 'p'
			ORDER BY p.oid LIMIT 1`,
		Args: []any{schema, name},
	}, nil
}

func (d *PostgresDialect) SampleQuery(schema, table string, limit int) Query {
	return Query{
		SQL:  "SELECT * FROM " + pq.QuoteIdentifier(schema) + "." + pq.QuoteIdentifier(table) + " LIMIT $1",
		Args: []any{limit},
	}
}

func (d *PostgresDialect) Classify(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return nil
	}
	switch {
	case pqErr.Code == "42501", pqErr.Code.Class() == "28":
		return ErrPermission
	case pqErr.Code.Class() == "08", strings.HasPrefix(string(pqErr.Code), "57P"):
		return ErrConnection
	}
	return nil
}
