package handlers

import "fmt"

// Method enumerates the exposed operations. String returns the wire name.
type Method int

const (
	MethodPing Method = iota
	MethodListDatabases
	MethodListTables
	MethodListViews
	MethodGetTableSchema
	MethodGetTableStats
	MethodGetIndexInfo
	MethodFindForeignKeys
	MethodGetTriggers
	MethodSearchColumns
	MethodDescribeColumn
	MethodListProcedures
	MethodListUsers
	MethodGetServerStatus
	MethodCompareSchemas
	MethodGenerateDDL
	MethodRunQuery
	MethodGetProcedureDefinition
	MethodSampleRows
	MethodExplainQuery
)

var methodNames = [...]string{
	MethodPing:                   "ping",
	MethodListDatabases:          "listDatabases",
	MethodListTables:             "listTables",
	MethodListViews:              "listViews",
	MethodGetTableSchema:         "getTableSchema",
	MethodGetTableStats:          "getTableStats",
	MethodGetIndexInfo:           "getIndexInfo",
	MethodFindForeignKeys:        "findForeignKeys",
	MethodGetTriggers:            "getTriggers",
	MethodSearchColumns:          "searchColumns",
	MethodDescribeColumn:         "describeColumn",
	MethodListProcedures:         "listProcedures",
	MethodListUsers:              "listUsers",
	MethodGetServerStatus:        "getServerStatus",
	MethodCompareSchemas:         "compareSchemas",
	MethodGenerateDDL:            "generateDDL",
	MethodRunQuery:               "runQuery",
	MethodGetProcedureDefinition: "getProcedureDefinition",
	MethodSampleRows:             "sampleRows",
	MethodExplainQuery:           "explainQuery",
}

func (m Method) String() string {
	if m >= 0 && int(m) < len(methodNames) {
		return methodNames[m]
	}
	return fmt.Sprintf("Method(%d)", int(m))
}

// Methods returns every method in declaration order.
func Methods() []Method {
	out := make([]Method, len(methodNames))
	for i := range out {
		out[i] = Method(i)
	}
	return out
}
