// Package schemadiff compares the column metadata of two schemas.
package schemadiff

// Column is the comparable metadata of one column.
type Column struct {
	Type            string
	Nullable        string
	Default         *string
	Key             string
	Extra           string
	OrdinalPosition int
}

// Snapshot maps table name to column name to column metadata. A Snapshot is
// built fresh for each comparison and not modified afterwards.
type Snapshot map[string]map[string]Column

// Add records a column, creating the table entry on first use.
func (s Snapshot) Add(table, column string, meta Column) {
	cols, ok := s[table]
	if !ok {
		cols = make(map[string]Column)
		s[table] = cols
	}
	cols[column] = meta
}
