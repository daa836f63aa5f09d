package handlers

import (
	"context"

	"github.com/shakram02/dbinspect-rpc/internal/database"
	"github.com/shakram02/dbinspect-rpc/internal/sqlguard"
)

// fakeDB records calls and serves canned metadata. When err is set every
// call fails with it.
type fakeDB struct {
	flavor  sqlguard.Flavor
	columns map[string][]database.Column
	ddl     *database.TableDDL
	err     error

	calls     []string
	lastArgs  []any
	lastTable *string
	lastLimit int
	lastFlag  bool
	snippet   int
}

func newFakeDB() *fakeDB {
	return &fakeDB{flavor: sqlguard.MySQL, columns: map[string][]database.Column{}}
}

func (f *fakeDB) record(call string) error {
	f.calls = append(f.calls, call)
	return f.err
}

func (f *fakeDB) Flavor() sqlguard.Flavor { return f.flavor }

func (f *fakeDB) ListDatabases(context.Context) ([]string, error) {
	if err := f.record("ListDatabases"); err != nil {
		return nil, err
	}
	return []string{"shop"}, nil
}

func (f *fakeDB) ListTables(context.Context) ([]string, error) {
	if err := f.record("ListTables"); err != nil {
		return nil, err
	}
	return []string{"customers", "orders"}, nil
}

func (f *fakeDB) ListViews(_ context.Context, snippetLength int) ([]database.View, error) {
	f.snippet = snippetLength
	if err := f.record("ListViews"); err != nil {
		return nil, err
	}
	return []database.View{}, nil
}

func (f *fakeDB) Columns(_ context.Context, schema, table string) ([]database.Column, error) {
	if err := f.record("Columns"); err != nil {
		return nil, err
	}
	out := []database.Column{}
	for _, c := range f.columns[schema] {
		if table == "" || c.TableName == table {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeDB) TableStats(context.Context) ([]database.TableStats, error) {
	return []database.TableStats{}, f.record("TableStats")
}

func (f *fakeDB) Indexes(context.Context, string) ([]database.Index, error) {
	return []database.Index{}, f.record("Indexes")
}

func (f *fakeDB) ForeignKeys(_ context.Context, table *string) ([]database.ForeignKey, error) {
	f.lastTable = table
	return []database.ForeignKey{}, f.record("ForeignKeys")
}

func (f *fakeDB) Triggers(_ context.Context, table *string) ([]database.Trigger, error) {
	f.lastTable = table
	return []database.Trigger{}, f.record("Triggers")
}

func (f *fakeDB) Routines(_ context.Context, includeFunctions bool) ([]database.Routine, error) {
	f.lastFlag = includeFunctions
	return []database.Routine{}, f.record("Routines")
}

func (f *fakeDB) Users(context.Context) ([]database.User, error) {
	return []database.User{}, f.record("Users")
}

func (f *fakeDB) ServerStatus(context.Context) (*database.ServerStatus, error) {
	if err := f.record("ServerStatus"); err != nil {
		return nil, err
	}
	version := "8.0.36"
	return &database.ServerStatus{Version: &version, Engines: []database.Engine{}}, nil
}

func (f *fakeDB) TableDDL(context.Context, string) (*database.TableDDL, error) {
	if err := f.record("TableDDL"); err != nil {
		return nil, err
	}
	return f.ddl, nil
}

func (f *fakeDB) ProcedureDefinition(context.Context, string) (*database.ProcedureDefinition, error) {
	return nil, f.record("ProcedureDefinition")
}

func (f *fakeDB) Query(_ context.Context, _ string, args []any) (*database.QueryResult, error) {
	f.lastArgs = args
	if err := f.record("Query"); err != nil {
		return nil, err
	}
	return &database.QueryResult{Columns: []string{"n"}, Rows: []map[string]any{{"n": 1}}}, nil
}

func (f *fakeDB) Sample(_ context.Context, _ string, limit int) (*database.QueryResult, error) {
	f.lastLimit = limit
	if err := f.record("Sample"); err != nil {
		return nil, err
	}
	return &database.QueryResult{Columns: []string{}, Rows: []map[string]any{}}, nil
}

func (f *fakeDB) Explain(_ context.Context, _ string, args []any) ([]map[string]any, error) {
	f.lastArgs = args
	if err := f.record("Explain"); err != nil {
		return nil, err
	}
	return []map[string]any{{"id": 1, "select_type": "SIMPLE"}}, nil
}
