// Package handlers implements the exposed introspection methods on top of a
// read-only database and registers them under their wire names.
package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shakram02/dbinspect-rpc/internal/database"
	"github.com/shakram02/dbinspect-rpc/internal/rpc"
	"github.com/shakram02/dbinspect-rpc/internal/schemadiff"
	"github.com/shakram02/dbinspect-rpc/internal/sqlguard"
)

const logPrefix = "handlers:Handle"

// Inspector is the database surface the handlers need. *database.DB
// implements it.
type Inspector interface {
	Flavor() sqlguard.Flavor
	ListDatabases(ctx context.Context) ([]string, error)
	ListTables(ctx context.Context) ([]string, error)
	ListViews(ctx context.Context, snippetLength int) ([]database.View, error)
	Columns(ctx context.Context, schema, table string) ([]database.Column, error)
	TableStats(ctx context.Context) ([]database.TableStats, error)
	Indexes(ctx context.Context, table string) ([]database.Index, error)
	ForeignKeys(ctx context.Context, table *string) ([]database.ForeignKey, error)
	Triggers(ctx context.Context, table *string) ([]database.Trigger, error)
	Routines(ctx context.Context, includeFunctions bool) ([]database.Routine, error)
	Users(ctx context.Context) ([]database.User, error)
	ServerStatus(ctx context.Context) (*database.ServerStatus, error)
	TableDDL(ctx context.Context, table string) (*database.TableDDL, error)
	ProcedureDefinition(ctx context.Context, name string) (*database.ProcedureDefinition, error)
	Query(ctx context.Context, sqlText string, args []any) (*database.QueryResult, error)
	Sample(ctx context.Context, table string, limit int) (*database.QueryResult, error)
	Explain(ctx context.Context, sqlText string, args []any) ([]map[string]any, error)
}

// Handlers serves every Method against one Inspector.
type Handlers struct {
	db     Inspector
	logger *slog.Logger
}

// New creates the handler set.
func New(db Inspector, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{db: db, logger: logger}
}

// Registry builds the method registry. It fails when the registration table
// is inconsistent.
func (h *Handlers) Registry() (*rpc.Registry, error) {
	return rpc.NewRegistry(h.Entries()...)
}

// Entries returns the registration of every Method with its wire parameter
// names, internal names and defaults.
func (h *Handlers) Entries() []rpc.Entry {
	tableName := rpc.Param{Wire: "tableName", Name: "table_name", Required: true}
	optionalTable := rpc.Param{Wire: "tableName", Name: "table_name"}
	sqlText := rpc.Param{Wire: "sql", Name: "sql", Required: true}
	sqlParams := rpc.Param{Wire: "params", Name: "params"}

	return []rpc.Entry{
		rpc.BindNoArgs(MethodPing.String(), h.Ping),
		rpc.BindNoArgs(MethodListDatabases.String(), h.ListDatabases),
		rpc.BindNoArgs(MethodListTables.String(), h.ListTables),
		rpc.Bind(MethodListViews.String(), h.ListViews,
			rpc.Param{Wire: "snippetLength", Name: "snippet_length", Default: 160}),
		rpc.Bind(MethodGetTableSchema.String(), h.GetTableSchema, tableName),
		rpc.BindNoArgs(MethodGetTableStats.String(), h.GetTableStats),
		rpc.Bind(MethodGetIndexInfo.String(), h.GetIndexInfo, tableName),
		rpc.Bind(MethodFindForeignKeys.String(), h.FindForeignKeys, optionalTable),
		rpc.Bind(MethodGetTriggers.String(), h.GetTriggers, optionalTable),
		rpc.Bind(MethodSearchColumns.String(), h.SearchColumns,
			rpc.Param{Wire: "keyword", Name: "keyword", Required: true}),
		rpc.Bind(MethodDescribeColumn.String(), h.DescribeColumn, tableName,
			rpc.Param{Wire: "columnName", Name: "column_name", Required: true}),
		rpc.Bind(MethodListProcedures.String(), h.ListProcedures,
			rpc.Param{Wire: "includeFunctions", Name: "include_functions", Default: true}),
		rpc.BindNoArgs(MethodListUsers.String(), h.ListUsers),
		rpc.BindNoArgs(MethodGetServerStatus.String(), h.GetServerStatus),
		rpc.Bind(MethodCompareSchemas.String(), h.CompareSchemas,
			rpc.Param{Wire: "schemaA", Name: "schema_a", Required: true},
			rpc.Param{Wire: "schemaB", Name: "schema_b", Required: true},
			optionalTable),
		rpc.Bind(MethodGenerateDDL.String(), h.GenerateDDL, tableName),
		rpc.Bind(MethodRunQuery.String(), h.RunQuery, sqlText, sqlParams),
		rpc.Bind(MethodGetProcedureDefinition.String(), h.GetProcedureDefinition,
			rpc.Param{Wire: "procedureName", Name: "procedure_name", Required: true}),
		rpc.Bind(MethodSampleRows.String(), h.SampleRows, tableName,
			rpc.Param{Wire: "limit", Name: "limit", Default: 5}),
		rpc.Bind(MethodExplainQuery.String(), h.ExplainQuery, sqlText, sqlParams),
	}
}

// Ping is the liveness probe.
func (h *Handlers) Ping(context.Context) (string, error) {
	return "pong", nil
}

func (h *Handlers) ListDatabases(ctx context.Context) ([]string, error) {
	names, err := h.db.ListDatabases(ctx)
	if err != nil {
		return nil, adapterError(err)
	}
	return names, nil
}

func (h *Handlers) ListTables(ctx context.Context) ([]string, error) {
	names, err := h.db.ListTables(ctx)
	if err != nil {
		return nil, adapterError(err)
	}
	return names, nil
}

type viewArgs struct {
	SnippetLength int `json:"snippet_length"`
}

// ListViews returns view names with a definition snippet. A snippet length
// of zero returns the full collapsed definition.
func (h *Handlers) ListViews(ctx context.Context, args viewArgs) ([]database.View, error) {
	if args.SnippetLength < 0 {
		return nil, invalidParams("snippetLength must not be negative.")
	}
	views, err := h.db.ListViews(ctx, args.SnippetLength)
	if err != nil {
		return nil, adapterError(err)
	}
	return views, nil
}

type tableArgs struct {
	TableName string `json:"table_name"`
}

// GetTableSchema returns the DESCRIBE view of a table's columns.
func (h *Handlers) GetTableSchema(ctx context.Context, args tableArgs) ([]database.ColumnDescription, error) {
	if err := requireName(args.TableName, "tableName is required to read a table schema."); err != nil {
		return nil, err
	}
	columns, err := h.db.Columns(ctx, "", args.TableName)
	if err != nil {
		return nil, adapterError(err)
	}
	out := make([]database.ColumnDescription, 0, len(columns))
	for _, c := range columns {
		out = append(out, c.Describe())
	}
	return out, nil
}

func (h *Handlers) GetTableStats(ctx context.Context) ([]database.TableStats, error) {
	stats, err := h.db.TableStats(ctx)
	if err != nil {
		return nil, adapterError(err)
	}
	return stats, nil
}

func (h *Handlers) GetIndexInfo(ctx context.Context, args tableArgs) ([]database.Index, error) {
	if err := requireName(args.TableName, "tableName is required for index inspection."); err != nil {
		return nil, err
	}
	indexes, err := h.db.Indexes(ctx, args.TableName)
	if err != nil {
		return nil, adapterError(err)
	}
	return indexes, nil
}

type optionalTableArgs struct {
	TableName *string `json:"table_name"`
}

// FindForeignKeys lists foreign keys of one table, or of the whole schema
// when tableName is omitted.
func (h *Handlers) FindForeignKeys(ctx context.Context, args optionalTableArgs) ([]database.ForeignKey, error) {
	if err := requireOptionalName(args.TableName); err != nil {
		return nil, err
	}
	keys, err := h.db.ForeignKeys(ctx, trimmed(args.TableName))
	if err != nil {
		return nil, adapterError(err)
	}
	return keys, nil
}

func (h *Handlers) GetTriggers(ctx context.Context, args optionalTableArgs) ([]database.Trigger, error) {
	if err := requireOptionalName(args.TableName); err != nil {
		return nil, err
	}
	triggers, err := h.db.Triggers(ctx, trimmed(args.TableName))
	if err != nil {
		return nil, adapterError(err)
	}
	return triggers, nil
}

type keywordArgs struct {
	Keyword string `json:"keyword"`
}

// SearchColumns finds columns whose name or comment contains the keyword,
// ignoring case.
func (h *Handlers) SearchColumns(ctx context.Context, args keywordArgs) ([]database.Column, error) {
	keyword := strings.ToLower(strings.TrimSpace(args.Keyword))
	if keyword == "" {
		return nil, invalidParams("keyword must not be empty for column search.")
	}
	columns, err := h.db.Columns(ctx, "", "")
	if err != nil {
		return nil, adapterError(err)
	}
	matches := []database.Column{}
	for _, c := range columns {
		if strings.Contains(strings.ToLower(c.ColumnName), keyword) ||
			strings.Contains(strings.ToLower(c.ColumnComment), keyword) {
			matches = append(matches, c)
		}
	}
	return matches, nil
}

type columnArgs struct {
	TableName  string `json:"table_name"`
	ColumnName string `json:"column_name"`
}

// DescribeColumn returns one column's metadata, or an empty object when the
// column does not exist.
func (h *Handlers) DescribeColumn(ctx context.Context, args columnArgs) (any, error) {
	if err := requireName(args.TableName, "tableName is required for column description."); err != nil {
		return nil, err
	}
	if err := requireName(args.ColumnName, "columnName is required for column description."); err != nil {
		return nil, err
	}
	columns, err := h.db.Columns(ctx, "", args.TableName)
	if err != nil {
		return nil, adapterError(err)
	}
	for _, c := range columns {
		if c.ColumnName == args.ColumnName {
			return c, nil
		}
	}
	return struct{}{}, nil
}

type procedureListArgs struct {
	IncludeFunctions bool `json:"include_functions"`
}

func (h *Handlers) ListProcedures(ctx context.Context, args procedureListArgs) ([]database.Routine, error) {
	routines, err := h.db.Routines(ctx, args.IncludeFunctions)
	if err != nil {
		return nil, adapterError(err)
	}
	return routines, nil
}

// ListUsers reports server accounts. Any failure short of a lost connection
// is a permission problem from the caller's point of view.
func (h *Handlers) ListUsers(ctx context.Context) ([]database.User, error) {
	users, err := h.db.Users(ctx)
	if err != nil {
		return nil, adapterError(err)
	}
	return users, nil
}

func (h *Handlers) GetServerStatus(ctx context.Context) (*database.ServerStatus, error) {
	status, err := h.db.ServerStatus(ctx)
	if err != nil {
		return nil, adapterError(err)
	}
	return status, nil
}

type compareArgs struct {
	SchemaA   string  `json:"schema_a"`
	SchemaB   string  `json:"schema_b"`
	TableName *string `json:"table_name"`
}

// CompareSchemas diffs the column metadata of two schemas, optionally
// restricted to one table.
func (h *Handlers) CompareSchemas(ctx context.Context, args compareArgs) (*schemadiff.Result, error) {
	if strings.TrimSpace(args.SchemaA) == "" || strings.TrimSpace(args.SchemaB) == "" {
		return nil, invalidParams("schemaA and schemaB are required for comparison.")
	}
	if err := requireOptionalName(args.TableName); err != nil {
		return nil, err
	}
	table := trimmed(args.TableName)

	left, err := h.snapshot(ctx, args.SchemaA, table)
	if err != nil {
		return nil, adapterError(err)
	}
	right, err := h.snapshot(ctx, args.SchemaB, table)
	if err != nil {
		return nil, adapterError(err)
	}

	result := schemadiff.Compare(left, right, table)
	result.SchemaA = args.SchemaA
	result.SchemaB = args.SchemaB
	h.logger.Debug(fmt.Sprintf("%s - compared schemas", logPrefix),
		"schema_a", args.SchemaA, "schema_b", args.SchemaB, "identical", result.Empty())
	return result, nil
}

func (h *Handlers) snapshot(ctx context.Context, schema string, table *string) (schemadiff.Snapshot, error) {
	var name string
	if table != nil {
		name = *table
	}
	columns, err := h.db.Columns(ctx, schema, name)
	if err != nil {
		return nil, err
	}
	snap := make(schemadiff.Snapshot)
	for _, c := range columns {
		snap.Add(c.TableName, c.ColumnName, schemadiff.Column{
			Type:            c.ColumnType,
			Nullable:        c.IsNullable,
			Default:         c.ColumnDefault,
			Key:             c.ColumnKey,
			Extra:           c.Extra,
			OrdinalPosition: c.OrdinalPosition,
		})
	}
	return snap, nil
}

// GenerateDDL returns the CREATE statement of a table, or an empty object
// when the table does not exist.
func (h *Handlers) GenerateDDL(ctx context.Context, args tableArgs) (any, error) {
	if err := requireName(args.TableName, "tableName is required to generate DDL."); err != nil {
		return nil, err
	}
	if err := checkTableName(args.TableName); err != nil {
		return nil, err
	}
	ddl, err := h.db.TableDDL(ctx, args.TableName)
	if err != nil {
		return nil, adapterError(err)
	}
	if ddl == nil {
		return struct{}{}, nil
	}
	return ddl, nil
}

type procedureArgs struct {
	ProcedureName string `json:"procedure_name"`
}

// GetProcedureDefinition returns a stored procedure's CREATE statement, or
// an empty object when no procedure has that name.
func (h *Handlers) GetProcedureDefinition(ctx context.Context, args procedureArgs) (any, error) {
	if args.ProcedureName == "" || strings.ContainsAny(args.ProcedureName, "` ") {
		return nil, invalidParams("Invalid procedure name.")
	}
	def, err := h.db.ProcedureDefinition(ctx, args.ProcedureName)
	if err != nil {
		return nil, adapterError(err)
	}
	if def == nil {
		return struct{}{}, nil
	}
	return def, nil
}

type sampleArgs struct {
	TableName string `json:"table_name"`
	Limit     int    `json:"limit"`
}

// SampleRows returns the first limit rows of a table.
func (h *Handlers) SampleRows(ctx context.Context, args sampleArgs) (*database.QueryResult, error) {
	if err := requireName(args.TableName, "tableName is required for sampling rows."); err != nil {
		return nil, err
	}
	if err := checkTableName(args.TableName); err != nil {
		return nil, err
	}
	if args.Limit <= 0 {
		return nil, invalidParams("limit must be a positive integer.")
	}
	result, err := h.db.Sample(ctx, args.TableName, args.Limit)
	if err != nil {
		return nil, adapterError(err)
	}
	return result, nil
}
