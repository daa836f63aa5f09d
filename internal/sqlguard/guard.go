// Package sqlguard decides whether caller-supplied SQL may be executed by a
// read-only server.
//
// IsReadOnly is the gate every free-form statement passes first. It is a
// prefix heuristic, not a parser: a WITH statement is accepted when SELECT
// appears outside every parenthesis after the WITH, so the CTE bodies alone
// do not qualify. Literals and comments are not stripped first. Inspect adds
// dialect-aware checks on top of it.
package sqlguard

import "strings"

// readOnlyPrefixes are matched against the upper-cased statement in order.
var readOnlyPrefixes = []string{"SELECT", "SHOW", "DESCRIBE", "EXPLAIN", "WITH"}

// IsReadOnly reports whether sqlText looks like a single read-only statement.
// The text is never modified; case folding is used for comparison only.
func IsReadOnly(sqlText string) bool {
	stripped := strings.TrimSpace(sqlText)
	if stripped == "" {
		return false
	}

	// Stacked statements. A single trailing semicolon is fine.
	if strings.Contains(stripped[:len(stripped)-1], ";") {
		return false
	}

	upper := strings.ToUpper(strings.TrimLeft(stripped, "("))
	for _, prefix := range readOnlyPrefixes {
		if !strings.HasPrefix(upper, prefix) {
			continue
		}
		if prefix == "WITH" {
			return selectsAtTopLevel(upper[len(prefix):])
		}
		return true
	}
	return false
}

// selectsAtTopLevel reports whether SELECT occurs at parenthesis depth zero.
func selectsAtTopLevel(upper string) bool {
	depth := 0
	for i := 0; i < len(upper); i++ {
		switch upper[i] {
		case '(':
			depth++
		case ')':
			if depth > 0 {
				depth--
			}
		default:
			if depth == 0 && strings.HasPrefix(upper[i:], "SELECT") {
				return true
			}
		}
	}
	return false
}
