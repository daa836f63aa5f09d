package database

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
)

var fixtureStatements = []string{
	`CREATE TABLE customers (id INTEGER PRIMARY KEY, email TEXT NOT NULL, name TEXT DEFAULT 'anon')`,
	`CREATE TABLE orders (
		id INTEGER PRIMARY KEY,
		customer_id INTEGER NOT NULL REFERENCES customers(id) ON DELETE CASCADE,
		total REAL
	)`,
	`CREATE INDEX idx_orders_customer ON orders(customer_id)`,
	`CREATE UNIQUE INDEX idx_customers_email ON customers(email)`,
	"CREATE VIEW big_orders AS SELECT   id,\n   total FROM orders WHERE total > 100",
	`CREATE TRIGGER trg_orders_ins AFTER INSERT ON orders BEGIN SELECT 1; END`,
	`INSERT INTO customers VALUES (1, 'a@example.com', 'Ann'), (2, 'b@example.com', 'Bob')`,
	`INSERT INTO orders VALUES (1, 1, 50), (2, 1, 150), (3, 2, 300)`,
}

// openFixture writes a small database to a temp file and opens it read-only.
func openFixture(t *testing.T, opts Options) *DB {
	t.Helper()
	path := writeFixture(t)

	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	db, err := Open(context.Background(), &SQLiteDialect{}, ReadOnlyDSN(path), opts)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func writeFixture(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shop.db")

	rw, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("Failed to create fixture: %v", err)
	}
	for _, stmt := range fixtureStatements {
		if _, err := rw.Exec(stmt); err != nil {
			rw.Close()
			t.Fatalf("Fixture statement failed: %v\n%s", err, stmt)
		}
	}
	if err := rw.Close(); err != nil {
		t.Fatalf("Failed to close fixture: %v", err)
	}
	return path
}

func TestSQLiteOpen(t *testing.T) {
	db := openFixture(t, Options{})
	if db.Schema() != "main" {
		t.Errorf("Expected schema 'main', got %q", db.Schema())
	}
	if db.DatabaseName() != "shop" {
		t.Errorf("Expected database name 'shop', got %q", db.DatabaseName())
	}
}

func TestSQLiteCatalog(t *testing.T) {
	ctx := context.Background()
	db := openFixture(t, Options{})

	databases, err := db.ListDatabases(ctx)
	if err != nil {
		t.Fatalf("ListDatabases: %v", err)
	}
	if len(databases) == 0 || databases[0] != "main" {
		t.Errorf("Expected 'main' first, got %v", databases)
	}

	tables, err := db.ListTables(ctx)
	if err != nil {
		t.Fatalf("ListTables: %v", err)
	}
	if strings.Join(tables, ",") != "customers,orders" {
		t.Errorf("Unexpected tables: %v", tables)
	}

	views, err := db.ListViews(ctx, 20)
	if err != nil {
		t.Fatalf("ListViews: %v", err)
	}
	if len(views) != 1 || views[0].Name != "big_orders" {
		t.Fatalf("Unexpected views: %+v", views)
	}
	if views[0].DefinitionSnippet != "CREATE VIEW big_o..." {
		t.Errorf("Unexpected snippet: %q", views[0].DefinitionSnippet)
	}

	stats, err := db.TableStats(ctx)
	if err != nil {
		t.Fatalf("TableStats: %v", err)
	}
	if len(stats) != 2 || stats[0].TableName != "customers" {
		t.Errorf("Unexpected stats: %+v", stats)
	}

	routines, err := db.Routines(ctx, true)
	if err != nil {
		t.Fatalf("Routines: %v", err)
	}
	if routines == nil || len(routines) != 0 {
		t.Errorf("Expected an empty, non-nil routine list, got %#v", routines)
	}
}

func TestSQLiteColumns(t *testing.T) {
	ctx := context.Background()
	db := openFixture(t, Options{})

	columns, err := db.Columns(ctx, "", "customers")
	if err != nil {
		t.Fatalf("Columns: %v", err)
	}
	if len(columns) != 3 {
		t.Fatalf("Expected 3 columns, got %d", len(columns))
	}

	id, email, name := columns[0], columns[1], columns[2]
	if id.ColumnName != "id" || id.ColumnKey != "PRI" || id.OrdinalPosition != 1 {
		t.Errorf("Unexpected id column: %+v", id)
	}
	if email.IsNullable != "NO" || email.ColumnType != "TEXT" {
		t.Errorf("Unexpected email column: %+v", email)
	}
	if name.ColumnDefault == nil || *name.ColumnDefault != "'anon'" {
		t.Errorf("Unexpected name default: %v", name.ColumnDefault)
	}
	if email.ColumnDefault != nil {
		t.Errorf("Expected NULL default for email, got %q", *email.ColumnDefault)
	}

	all, err := db.Columns(ctx, "", "")
	if err != nil {
		t.Fatalf("Columns (all): %v", err)
	}
	if len(all) != 6 {
		t.Errorf("Expected 6 columns across tables, got %d", len(all))
	}
}

func TestSQLiteIndexesAndKeys(t *testing.T) {
	ctx := context.Background()
	db := openFixture(t, Options{})

	indexes, err := db.Indexes(ctx, "orders")
	if err != nil {
		t.Fatalf("Indexes: %v", err)
	}
	if len(indexes) != 1 {
		t.Fatalf("Expected 1 index entry, got %+v", indexes)
	}
	ix := indexes[0]
	if ix.IndexName != "idx_orders_customer" || ix.IsUnique || ix.SeqInIndex != 1 {
		t.Errorf("Unexpected index: %+v", ix)
	}
	if ix.ColumnName == nil || *ix.ColumnName != "customer_id" {
		t.Errorf("Unexpected index column: %v", ix.ColumnName)
	}

	unique, err := db.Indexes(ctx, "customers")
	if err != nil {
		t.Fatalf("Indexes: %v", err)
	}
	if len(unique) != 1 || !unique[0].IsUnique {
		t.Errorf("Expected the unique email index, got %+v", unique)
	}

	keys, err := db.ForeignKeys(ctx, nil)
	if err != nil {
		t.Fatalf("ForeignKeys: %v", err)
	}
	if len(keys) != 1 {
		t.Fatalf("Expected 1 foreign key, got %+v", keys)
	}
	fk := keys[0]
	if fk.TableName != "orders" || fk.ColumnName != "customer_id" || fk.ReferencedTable != "customers" {
		t.Errorf("Unexpected foreign key: %+v", fk)
	}
	if fk.DeleteRule == nil || *fk.DeleteRule != "CASCADE" {
		t.Errorf("Expected CASCADE delete rule, got %v", fk.DeleteRule)
	}

	customers := "customers"
	none, err := db.ForeignKeys(ctx, &customers)
	if err != nil {
		t.Fatalf("ForeignKeys: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("Expected no foreign keys on customers, got %+v", none)
	}

	orders := "orders"
	triggers, err := db.Triggers(ctx, &orders)
	if err != nil {
		t.Fatalf("Triggers: %v", err)
	}
	if len(triggers) != 1 || triggers[0].TriggerName != "trg_orders_ins" || triggers[0].EventTable != "orders" {
		t.Errorf("Unexpected triggers: %+v", triggers)
	}
}

func TestSQLiteServerStatus(t *testing.T) {
	db := openFixture(t, Options{})

	status, err := db.ServerStatus(context.Background())
	if err != nil {
		t.Fatalf("ServerStatus: %v", err)
	}
	if status.Version == nil || *status.Version == "" {
		t.Error("Expected a version")
	}
	if status.ThreadsConnected != nil || status.UptimeSeconds != nil {
		t.Errorf("Expected unsupported fields to be nil: %+v", status)
	}
	if status.Engines == nil || len(status.Engines) != 0 {
		t.Errorf("Expected empty engines, got %#v", status.Engines)
	}
}

func TestSQLiteUnsupported(t *testing.T) {
	ctx := context.Background()
	db := openFixture(t, Options{})

	if _, err := db.Users(ctx); !errors.Is(err, ErrUnsupported) {
		t.Errorf("Expected ErrUnsupported from Users, got %v", err)
	}
	if _, err := db.ProcedureDefinition(ctx, "refresh"); !errors.Is(err, ErrUnsupported) {
		t.Errorf("Expected ErrUnsupported from ProcedureDefinition, got %v", err)
	}
}

func TestSQLiteTableDDL(t *testing.T) {
	ctx := context.Background()
	db := openFixture(t, Options{})

	ddl, err := db.TableDDL(ctx, "customers")
	if err != nil {
		t.Fatalf("TableDDL: %v", err)
	}
	if ddl == nil || ddl.Table != "customers" || !strings.HasPrefix(ddl.CreateStatement, "CREATE TABLE customers") {
		t.Errorf("Unexpected DDL: %+v", ddl)
	}

	missing, err := db.TableDDL(ctx, "ghosts")
	if err != nil {
		t.Fatalf("TableDDL: %v", err)
	}
	if missing != nil {
		t.Errorf("Expected nil for a missing table, got %+v", missing)
	}
}

func TestSQLiteQuery(t *testing.T) {
	ctx := context.Background()
	db := openFixture(t, Options{MaxRows: 2})

	result, err := db.Query(ctx, "SELECT id, email FROM customers WHERE id = ?", []any{int64(1)})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if strings.Join(result.Columns, ",") != "id,email" {
		t.Errorf("Unexpected columns: %v", result.Columns)
	}
	if len(result.Rows) != 1 || result.Rows[0]["email"] != "a@example.com" {
		t.Errorf("Unexpected rows: %v", result.Rows)
	}
	if result.Truncated {
		t.Error("Expected no truncation")
	}

	capped, err := db.Query(ctx, "SELECT * FROM orders ORDER BY id", nil)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(capped.Rows) != 2 || !capped.Truncated {
		t.Errorf("Expected 2 rows and truncation, got %d rows truncated=%v", len(capped.Rows), capped.Truncated)
	}

	empty, err := db.Query(ctx, "SELECT * FROM orders WHERE id < 0", nil)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if empty.Rows == nil || len(empty.Rows) != 0 {
		t.Errorf("Expected empty, non-nil rows, got %#v", empty.Rows)
	}
}

func TestSQLiteSample(t *testing.T) {
	ctx := context.Background()
	db := openFixture(t, Options{MaxRows: 2})

	sample, err := db.Sample(ctx, "orders", 5)
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	if len(sample.Rows) != 2 {
		t.Errorf("Expected the limit to be capped at 2 rows, got %d", len(sample.Rows))
	}
	if strings.Join(sample.Columns, ",") != "id,customer_id,total" {
		t.Errorf("Unexpected columns: %v", sample.Columns)
	}
}

func TestSQLiteExplain(t *testing.T) {
	db := openFixture(t, Options{})

	plan, err := db.Explain(context.Background(), "SELECT * FROM orders WHERE customer_id = ?", []any{int64(1)})
	if err != nil {
		t.Fatalf("Explain: %v", err)
	}
	if len(plan) == 0 {
		t.Error("Expected plan rows")
	}
}

func TestSQLiteRejectsWrites(t *testing.T) {
	db := openFixture(t, Options{})

	_, err := db.Query(context.Background(), "INSERT INTO customers VALUES (3, 'c@example.com', 'Cy')", nil)
	if err == nil {
		t.Fatal("Expected the read-only connection to reject a write")
	}
	if !errors.Is(err, ErrPermission) {
		t.Errorf("Expected ErrPermission, got %v", err)
	}
}

func TestSQLiteReadOnlyOnEveryConnection(t *testing.T) {
	// A plain path opens read-write; only the session statement protects it.
	path := writeFixture(t)
	db, err := Open(context.Background(), &SQLiteDialect{}, path, Options{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()
	db.db.SetMaxIdleConns(0)

	for i := 0; i < 3; i++ {
		_, err := db.Query(context.Background(), "INSERT INTO customers VALUES (3, 'c@example.com', 'Cy')", nil)
		if !errors.Is(err, ErrPermission) {
			t.Fatalf("Attempt %d: expected ErrPermission on a fresh connection, got %v", i, err)
		}
	}
}
