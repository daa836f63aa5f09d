package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ListDatabases returns the databases visible to the account.
func (d *DB) ListDatabases(ctx context.Context) ([]string, error) {
	return collect(ctx, d, "list databases", d.dialect.ListDatabasesQuery(), scanString)
}

// ListTables returns the tables of the configured schema.
func (d *DB) ListTables(ctx context.Context) ([]string, error) {
	return collect(ctx, d, "list tables", d.dialect.ListTablesQuery(d.schema), scanString)
}

// ListViews returns each view with its definition collapsed to single
// spaces and cut to snippetLength runes. Zero or less disables the cut.
func (d *DB) ListViews(ctx context.Context, snippetLength int) ([]View, error) {
	return collect(ctx, d, "list views", d.dialect.ListViewsQuery(d.schema), func(rows *sql.Rows) (View, error) {
		var name string
		var definition sql.NullString
		if err := rows.Scan(&name, &definition); err != nil {
			return View{}, err
		}
		return View{Name: name, DefinitionSnippet: Snippet(definition.String, snippetLength)}, nil
	})
}

// Snippet collapses whitespace runs in s and truncates the result to length
// runes, ending with "..." when length leaves room for it.
func Snippet(s string, length int) string {
	collapsed := strings.Join(strings.Fields(s), " ")
	runes := []rune(collapsed)
	if length <= 0 || len(runes) <= length {
		return collapsed
	}
	if length > 3 {
		return string(runes[:length-3]) + "..."
	}
	return string(runes[:length])
}

// Columns returns column metadata of table, or of every table in schema
// when table is empty. An empty schema selects the configured one.
func (d *DB) Columns(ctx context.Context, schema, table string) ([]Column, error) {
	if schema == "" {
		schema = d.schema
	}
	return collect(ctx, d, "read columns", d.dialect.ColumnsQuery(schema, table), scanColumn)
}

func scanColumn(rows *sql.Rows) (Column, error) {
	var c Column
	var def sql.NullString
	var key, extra, comment sql.NullString
	var charLen, precision, scale sql.NullInt64
	if err := rows.Scan(&c.TableName, &c.ColumnName, &c.ColumnType, &c.IsNullable, &def,
		&key, &extra, &comment, &c.OrdinalPosition, &charLen, &precision, &scale); err != nil {
		return Column{}, err
	}
	c.ColumnDefault = stringPtr(def)
	c.ColumnKey = key.String
	c.Extra = extra.String
	c.ColumnComment = comment.String
	c.CharLength = int64Ptr(charLen)
	c.NumericPrecision = int64Ptr(precision)
	c.NumericScale = int64Ptr(scale)
	return c, nil
}

// TableStats returns size and row estimates for the tables of the schema.
func (d *DB) TableStats(ctx context.Context) ([]TableStats, error) {
	return collect(ctx, d, "read table stats", d.dialect.TableStatsQuery(d.schema), func(rows *sql.Rows) (TableStats, error) {
		var s TableStats
		var engine, created, updated sql.NullString
		var tableRows, dataLen, indexLen, dataFree sql.NullInt64
		if err := rows.Scan(&s.TableName, &engine, &tableRows, &dataLen, &indexLen, &dataFree,
			&created, &updated); err != nil {
			return TableStats{}, err
		}
		s.Engine = stringPtr(engine)
		s.TableRows = int64Ptr(tableRows)
		s.DataLength = int64Ptr(dataLen)
		s.IndexLength = int64Ptr(indexLen)
		s.DataFree = int64Ptr(dataFree)
		s.CreateTime = stringPtr(created)
		s.UpdateTime = stringPtr(updated)
		return s, nil
	})
}

// Indexes returns one entry per indexed column of table.
func (d *DB) Indexes(ctx context.Context, table string) ([]Index, error) {
	return collect(ctx, d, "read indexes", d.dialect.IndexesQuery(d.schema, table), func(rows *sql.Rows) (Index, error) {
		var ix Index
		var nonUnique int64
		var column, indexType, collation, packed, nullable, comment sql.NullString
		var cardinality, subPart sql.NullInt64
		if err := rows.Scan(&ix.IndexName, &column, &ix.SeqInIndex, &nonUnique, &indexType,
			&collation, &cardinality, &subPart, &packed, &nullable, &comment); err != nil {
			return Index{}, err
		}
		ix.ColumnName = stringPtr(column)
		ix.IsUnique = nonUnique == 0
		ix.IndexType = stringPtr(indexType)
		ix.Collation = stringPtr(collation)
		ix.Cardinality = int64Ptr(cardinality)
		ix.SubPart = int64Ptr(subPart)
		ix.Packed = stringPtr(packed)
		ix.NullAllowed = stringPtr(nullable)
		ix.IndexComment = stringPtr(comment)
		return ix, nil
	})
}

// ForeignKeys returns the foreign key columns of table, or of the whole
// schema when table is nil.
func (d *DB) ForeignKeys(ctx context.Context, table *string) ([]ForeignKey, error) {
	q := d.dialect.ForeignKeysQuery(d.schema, deref(table))
	return collect(ctx, d, "read foreign keys", q, func(rows *sql.Rows) (ForeignKey, error) {
		var fk ForeignKey
		var refColumn, onUpdate, onDelete sql.NullString
		if err := rows.Scan(&fk.ConstraintName, &fk.TableName, &fk.ColumnName, &fk.ReferencedTable,
			&refColumn, &onUpdate, &onDelete); err != nil {
			return ForeignKey{}, err
		}
		fk.ReferencedColumn = stringPtr(refColumn)
		fk.UpdateRule = stringPtr(onUpdate)
		fk.DeleteRule = stringPtr(onDelete)
		return fk, nil
	})
}

// Triggers returns the triggers of table, or of the whole schema when table
// is nil.
func (d *DB) Triggers(ctx context.Context, table *string) ([]Trigger, error) {
	q := d.dialect.TriggersQuery(d.schema, deref(table))
	return collect(ctx, d, "read triggers", q, func(rows *sql.Rows) (Trigger, error) {
		var t Trigger
		var event, timing, statement, created sql.NullString
		if err := rows.Scan(&t.TriggerName, &event, &t.EventTable, &timing, &statement, &created); err != nil {
			return Trigger{}, err
		}
		t.EventManipulation = stringPtr(event)
		t.ActionTiming = stringPtr(timing)
		t.ActionStatement = stringPtr(statement)
		t.CreatedAt = stringPtr(created)
		return t, nil
	})
}

// Routines returns stored procedures, and functions too when
// includeFunctions is set.
func (d *DB) Routines(ctx context.Context, includeFunctions bool) ([]Routine, error) {
	q := d.dialect.RoutinesQuery(d.schema, includeFunctions)
	return collect(ctx, d, "list routines", q, func(rows *sql.Rows) (Routine, error) {
		var r Routine
		var created, altered sql.NullString
		if err := rows.Scan(&r.RoutineName, &r.RoutineType, &created, &altered); err != nil {
			return Routine{}, err
		}
		r.CreatedAt = stringPtr(created)
		r.LastAltered = stringPtr(altered)
		return r, nil
	})
}

// Users returns server accounts. Failures other than connection loss are
// reported as ErrPermission, since reading the account catalog is the usual
// privilege a read-only login lacks.
func (d *DB) Users(ctx context.Context) ([]User, error) {
	version, err := d.version(ctx)
	if err != nil {
		return nil, err
	}
	q, err := d.dialect.UsersQuery(deref(version))
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	users, err := collect(ctx, d, "list users", q, func(rows *sql.Rows) (User, error) {
		var u User
		err := rows.Scan(&u.User, &u.Host, &u.AuthPlugin, &u.AccountLocked, &u.PasswordExpired)
		return u, err
	})
	if err != nil && !errors.Is(err, ErrConnection) && !errors.Is(err, ErrPermission) {
		return nil, fmt.Errorf("%w: check that the account may read the user catalog: %w", ErrPermission, err)
	}
	return users, err
}

// ServerStatus reports version, connected threads, uptime and storage
// engines. Values the dialect cannot report stay nil and engines empty.
func (d *DB) ServerStatus(ctx context.Context) (*ServerStatus, error) {
	status := &ServerStatus{Engines: []Engine{}}

	var err error
	if status.Version, err = d.version(ctx); err != nil {
		return nil, err
	}
	if status.ThreadsConnected, err = d.optionalScalar(ctx, "read threads connected", d.dialect.ThreadsConnectedQuery); err != nil {
		return nil, err
	}
	if status.UptimeSeconds, err = d.optionalScalar(ctx, "read uptime", d.dialect.UptimeQuery); err != nil {
		return nil, err
	}

	q, err := d.dialect.EnginesQuery()
	if errors.Is(err, ErrUnsupported) {
		return status, nil
	}
	if err != nil {
		return nil, err
	}
	status.Engines, err = collect(ctx, d, "list engines", q, func(rows *sql.Rows) (Engine, error) {
		var e Engine
		var support, comment, tx, xa, savepoints sql.NullString
		if err := rows.Scan(&e.Engine, &support, &comment, &tx, &xa, &savepoints); err != nil {
			return Engine{}, err
		}
		e.Support = stringPtr(support)
		e.Comment = stringPtr(comment)
		e.Transactions = stringPtr(tx)
		e.XA = stringPtr(xa)
		e.Savepoints = stringPtr(savepoints)
		return e, nil
	})
	if err != nil {
		return nil, err
	}
	return status, nil
}

func (d *DB) version(ctx context.Context) (*string, error) {
	return d.scalar(ctx, "read server version", d.dialect.VersionQuery())
}

func (d *DB) optionalScalar(ctx context.Context, op string, build func() (Query, error)) (*string, error) {
	q, err := build()
	if errors.Is(err, ErrUnsupported) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return d.scalar(ctx, op, q)
}

// scalar returns the last column of the first row, which covers both
// single-value selects and SHOW STATUS name/value pairs.
func (d *DB) scalar(ctx context.Context, op string, q Query) (*string, error) {
	var out *string
	found := false
	err := d.each(ctx, q, func(rows *sql.Rows) error {
		if found {
			return nil
		}
		values, err := scanStrings(rows)
		if err != nil {
			return err
		}
		if len(values) > 0 {
			out = stringPtr(values[len(values)-1])
		}
		found = true
		return nil
	})
	if err != nil {
		return nil, d.fail(op, err)
	}
	return out, nil
}

// TableDDL returns the CREATE statement of table, or nil when the table does
// not exist.
func (d *DB) TableDDL(ctx context.Context, table string) (*TableDDL, error) {
	q, err := d.dialect.TableDDLQuery(d.schema, table)
	if errors.Is(err, ErrUnsupported) {
		return d.synthesizeDDL(ctx, table)
	}
	if err != nil {
		return nil, err
	}

	var ddl *TableDDL
	err = d.each(ctx, q, func(rows *sql.Rows) error {
		values, err := scanStrings(rows)
		if err != nil {
			return err
		}
		if ddl == nil && len(values) >= 2 {
			ddl = &TableDDL{Table: values[0].String, CreateStatement: values[1].String}
		}
		return nil
	})
	if err != nil {
		if mysqlErrorNumber(err) == 1146 {
			return nil, nil
		}
		return nil, d.fail("show create table", err)
	}
	return ddl, nil
}

// synthesizeDDL builds a CREATE TABLE statement from column metadata for
// servers that cannot print one.
func (d *DB) synthesizeDDL(ctx context.Context, table string) (*TableDDL, error) {
	columns, err := d.Columns(ctx, "", table)
	if err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return nil, nil
	}
	sort.SliceStable(columns, func(i, j int) bool {
		return columns[i].OrdinalPosition < columns[j].OrdinalPosition
	})

	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE %s.%s (\n", quoteIdent(d.schema), quoteIdent(table))
	var primary []string
	for i, c := range columns {
		fmt.Fprintf(&b, "  %s %s", quoteIdent(c.ColumnName), c.ColumnType)
		if c.IsNullable == "NO" {
			b.WriteString(" NOT NULL")
		}
		if c.ColumnDefault != nil {
			fmt.Fprintf(&b, " DEFAULT %s", *c.ColumnDefault)
		}
		if c.ColumnKey == "PRI" {
			primary = append(primary, quoteIdent(c.ColumnName))
		}
		if i < len(columns)-1 || len(primary) > 0 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	if len(primary) > 0 {
		fmt.Fprintf(&b, "  PRIMARY KEY (%s)\n", strings.Join(primary, ", "))
	}
	b.WriteString(");")
	return &TableDDL{Table: table, CreateStatement: b.String()}, nil
}

// ProcedureDefinition returns the CREATE statement of a stored procedure, or
// nil when no procedure has that name.
func (d *DB) ProcedureDefinition(ctx context.Context, name string) (*ProcedureDefinition, error) {
	q, err := d.dialect.ProcedureDefinitionQuery(d.schema, name)
	if err != nil {
		return nil, fmt.Errorf("read procedure definition: %w", err)
	}

	var def *ProcedureDefinition
	err = d.each(ctx, q, func(rows *sql.Rows) error {
		if def != nil {
			return nil
		}
		named, err := scanNamed(rows)
		if err != nil {
			return err
		}
		def = &ProcedureDefinition{
			Procedure:           deref(named["Procedure"]),
			SQLMode:             named["sql_mode"],
			CreateProcedure:     named["Create Procedure"],
			CharacterSetClient:  named["character_set_client"],
			CollationConnection: named["collation_connection"],
			DatabaseCollation:   named["Database Collation"],
		}
		return nil
	})
	if err != nil {
		if mysqlErrorNumber(err) == 1305 {
			return nil, nil
		}
		return nil, d.fail("read procedure definition", err)
	}
	return def, nil
}

// Query runs a caller-supplied statement. The caller is responsible for
// checking that sqlText is read-only.
func (d *DB) Query(ctx context.Context, sqlText string, args []any) (*QueryResult, error) {
	result, err := d.query(ctx, Query{SQL: sqlText, Args: args})
	if err != nil {
		return nil, d.fail("run query", err)
	}
	return result, nil
}

// Sample returns up to limit rows of table, capped at the configured row
// limit.
func (d *DB) Sample(ctx context.Context, table string, limit int) (*QueryResult, error) {
	if limit > d.maxRows {
		limit = d.maxRows
	}
	result, err := d.query(ctx, d.dialect.SampleQuery(d.schema, table, limit))
	if err != nil {
		return nil, d.fail("sample rows", err)
	}
	return result, nil
}

// Explain returns the plan rows for sqlText. The caller is responsible for
// checking that sqlText is read-only.
func (d *DB) Explain(ctx context.Context, sqlText string, args []any) ([]map[string]any, error) {
	result, err := d.query(ctx, Query{SQL: d.dialect.ExplainPrefix() + sqlText, Args: args})
	if err != nil {
		return nil, d.fail("explain query", err)
	}
	return result.Rows, nil
}

func (d *DB) query(ctx context.Context, q Query) (*QueryResult, error) {
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, q.SQL, q.Args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return toResult(rows, d.maxRows)
}

func scanString(rows *sql.Rows) (string, error) {
	var s string
	err := rows.Scan(&s)
	return s, err
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
