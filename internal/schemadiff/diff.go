package schemadiff

import "sort"

// Field keys reported in ColumnMismatch.Differences.
const (
	FieldType     = "column_type"
	FieldNullable = "is_nullable"
	FieldDefault  = "column_default"
	FieldKey      = "column_key"
	FieldExtra    = "extra"
)

// Result is the delta between schema A (left) and schema B (right).
type Result struct {
	SchemaA    string               `json:"schemaA"`
	SchemaB    string               `json:"schemaB"`
	OnlyInA    []string             `json:"onlyInA"`
	OnlyInB    []string             `json:"onlyInB"`
	TableDiffs map[string]TableDiff `json:"tableDiffs"`
}

// TableDiff describes a table present on both sides that deviates.
type TableDiff struct {
	OnlyInA           []string         `json:"onlyInA"`
	OnlyInB           []string         `json:"onlyInB"`
	MismatchedColumns []ColumnMismatch `json:"mismatchedColumns"`
}

// ColumnMismatch lists the fields of one column whose values differ.
type ColumnMismatch struct {
	Column      string                `json:"column"`
	Differences map[string]FieldDelta `json:"differences"`
}

// FieldDelta holds both sides of a differing field. A nil value means the
// field was NULL on that side.
type FieldDelta struct {
	SchemaA any `json:"schemaA"`
	SchemaB any `json:"schemaB"`
}

// Empty reports whether the comparison found no deviation at all.
func (r *Result) Empty() bool {
	return len(r.OnlyInA) == 0 && len(r.OnlyInB) == 0 && len(r.TableDiffs) == 0
}

// Compare diffs left against right. When tableFilter is non-nil only that
// table is considered; otherwise the union of both sides is. Tables present on
// one side only are reported at the top level and not descended into. Tables
// and columns are visited in lexicographic order.
func Compare(left, right Snapshot, tableFilter *string) *Result {
	result := &Result{
		OnlyInA:    []string{},
		OnlyInB:    []string{},
		TableDiffs: map[string]TableDiff{},
	}

	for _, table := range tablesToCheck(left, right, tableFilter) {
		colsA, inA := left[table]
		colsB, inB := right[table]
		switch {
		case inA && !inB:
			result.OnlyInA = append(result.OnlyInA, table)
			continue
		case inB && !inA:
			result.OnlyInB = append(result.OnlyInB, table)
			continue
		case !inA && !inB:
			continue
		}

		if diff, ok := compareTable(colsA, colsB); ok {
			result.TableDiffs[table] = diff
		}
	}
	return result
}

func tablesToCheck(left, right Snapshot, tableFilter *string) []string {
	if tableFilter != nil {
		return []string{*tableFilter}
	}
	return unionKeys(left, right)
}

// compareTable returns the table's diff and whether it has any deviation.
func compareTable(colsA, colsB map[string]Column) (TableDiff, bool) {
	diff := TableDiff{
		OnlyInA:           []string{},
		OnlyInB:           []string{},
		MismatchedColumns: []ColumnMismatch{},
	}

	for _, col := range unionKeys(colsA, colsB) {
		metaA, inA := colsA[col]
		metaB, inB := colsB[col]
		switch {
		case inA && !inB:
			diff.OnlyInA = append(diff.OnlyInA, col)
		case inB && !inA:
			diff.OnlyInB = append(diff.OnlyInB, col)
		default:
			if deviations := compareColumn(metaA, metaB); len(deviations) > 0 {
				diff.MismatchedColumns = append(diff.MismatchedColumns, ColumnMismatch{
					Column:      col,
					Differences: deviations,
				})
			}
		}
	}

	changed := len(diff.OnlyInA) > 0 || len(diff.OnlyInB) > 0 || len(diff.MismatchedColumns) > 0
	return diff, changed
}

// compareColumn compares the fixed field set. OrdinalPosition is not compared.
func compareColumn(a, b Column) map[string]FieldDelta {
	deviations := map[string]FieldDelta{}
	compareString := func(field, va, vb string) {
		if va != vb {
			deviations[field] = FieldDelta{SchemaA: va, SchemaB: vb}
		}
	}

	compareString(FieldType, a.Type, b.Type)
	compareString(FieldNullable, a.Nullable, b.Nullable)
	if !equalNullable(a.Default, b.Default) {
		deviations[FieldDefault] = FieldDelta{SchemaA: nullableValue(a.Default), SchemaB: nullableValue(b.Default)}
	}
	compareString(FieldKey, a.Key, b.Key)
	compareString(FieldExtra, a.Extra, b.Extra)
	return deviations
}

func equalNullable(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func nullableValue(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

func unionKeys[V any](a, b map[string]V) []string {
	keys := make([]string, 0, len(a)+len(b))
	for k := range a {
		keys = append(keys, k)
	}
	for k := range b {
		if _, ok := a[k]; !ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}
