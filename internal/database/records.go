package database

// View is a view name with a whitespace-collapsed, truncated definition.
type View struct {
	Name              string `json:"name"`
	DefinitionSnippet string `json:"definitionSnippet"`
}

// Column is the full metadata of one column.
type Column struct {
	TableName        string  `json:"table_name"`
	ColumnName       string  `json:"column_name"`
	ColumnType       string  `json:"column_type"`
	IsNullable       string  `json:"is_nullable"`
	ColumnDefault    *string `json:"column_default"`
	ColumnKey        string  `json:"column_key"`
	Extra            string  `json:"extra"`
	ColumnComment    string  `json:"column_comment"`
	OrdinalPosition  int     `json:"ordinal_position"`
	CharLength       *int64  `json:"char_length"`
	NumericPrecision *int64  `json:"numeric_precision"`
	NumericScale     *int64  `json:"numeric_scale"`
}

// ColumnDescription is the DESCRIBE-shaped view of a Column.
type ColumnDescription struct {
	Field   string  `json:"Field"`
	Type    string  `json:"Type"`
	Null    string  `json:"Null"`
	Key     string  `json:"Key"`
	Default *string `json:"Default"`
	Extra   string  `json:"Extra"`
}

// Describe converts c to its DESCRIBE shape.
func (c Column) Describe() ColumnDescription {
	return ColumnDescription{
		Field:   c.ColumnName,
		Type:    c.ColumnType,
		Null:    c.IsNullable,
		Key:     c.ColumnKey,
		Default: c.ColumnDefault,
		Extra:   c.Extra,
	}
}

// TableStats holds size and row estimates of one table.
type TableStats struct {
	TableName   string  `json:"table_name"`
	Engine      *string `json:"engine"`
	TableRows   *int64  `json:"table_rows"`
	DataLength  *int64  `json:"data_length"`
	IndexLength *int64  `json:"index_length"`
	DataFree    *int64  `json:"data_free"`
	CreateTime  *string `json:"create_time"`
	UpdateTime  *string `json:"update_time"`
}

// Index is one column of one index.
type Index struct {
	IndexName    string  `json:"indexName"`
	ColumnName   *string `json:"columnName"`
	SeqInIndex   int64   `json:"seqInIndex"`
	IsUnique     bool    `json:"isUnique"`
	IndexType    *string `json:"indexType"`
	Collation    *string `json:"collation"`
	Cardinality  *int64  `json:"cardinality"`
	SubPart      *int64  `json:"subPart"`
	Packed       *string `json:"packed"`
	NullAllowed  *string `json:"nullAllowed"`
	IndexComment *string `json:"indexComment"`
}

// ForeignKey is one column of a foreign key constraint.
type ForeignKey struct {
	ConstraintName   string  `json:"constraintName"`
	TableName        string  `json:"tableName"`
	ColumnName       string  `json:"columnName"`
	ReferencedTable  string  `json:"referencedTable"`
	ReferencedColumn *string `json:"referencedColumn"`
	UpdateRule       *string `json:"updateRule"`
	DeleteRule       *string `json:"deleteRule"`
}

// Trigger describes one trigger and its body.
type Trigger struct {
	TriggerName       string  `json:"trigger_name"`
	EventManipulation *string `json:"event_manipulation"`
	EventTable        string  `json:"event_table"`
	ActionTiming      *string `json:"action_timing"`
	ActionStatement   *string `json:"action_statement"`
	CreatedAt         *string `json:"created_at"`
}

// Routine is a stored procedure or function.
type Routine struct {
	RoutineName string  `json:"routine_name"`
	RoutineType string  `json:"routine_type"`
	CreatedAt   *string `json:"created_at"`
	LastAltered *string `json:"last_altered"`
}

// User is a server account.
type User struct {
	User            string `json:"user"`
	Host            string `json:"host"`
	AuthPlugin      string `json:"auth_plugin"`
	AccountLocked   string `json:"account_locked"`
	PasswordExpired string `json:"password_expired"`
}

// Engine is one row of SHOW ENGINES.
type Engine struct {
	Engine       string  `json:"Engine"`
	Support      *string `json:"Support"`
	Comment      *string `json:"Comment"`
	Transactions *string `json:"Transactions"`
	XA           *string `json:"XA"`
	Savepoints   *string `json:"Savepoints"`
}

// ServerStatus summarises the server. Fields a dialect cannot report are nil.
type ServerStatus struct {
	Version          *string  `json:"version"`
	ThreadsConnected *string  `json:"threadsConnected"`
	UptimeSeconds    *string  `json:"uptimeSeconds"`
	Engines          []Engine `json:"engines"`
}

// TableDDL is the CREATE statement of a table.
type TableDDL struct {
	Table           string `json:"table"`
	CreateStatement string `json:"createStatement"`
}

// ProcedureDefinition is the CREATE statement of a stored procedure.
type ProcedureDefinition struct {
	Procedure           string  `json:"Procedure"`
	SQLMode             *string `json:"sql_mode"`
	CreateProcedure     *string `json:"Create Procedure"`
	CharacterSetClient  *string `json:"character_set_client"`
	CollationConnection *string `json:"collation_connection"`
	DatabaseCollation   *string `json:"Database Collation"`
}

// QueryResult holds the rows of a free-form statement. Truncated is set when
// the row cap cut the result short.
type QueryResult struct {
	Columns   []string         `json:"columns"`
	Rows      []map[string]any `json:"rows"`
	Truncated bool             `json:"truncated,omitempty"`
}
