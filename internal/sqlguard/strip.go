package sqlguard

import "strings"

// Flavor selects the lexical rules of a SQL dialect.
type Flavor int

const (
	MySQL Flavor = iota + 1
	Postgres
	SQLite
)

func (f Flavor) String() string {
	switch f {
	case MySQL:
		return "mysql"
	case Postgres:
		return "postgres"
	case SQLite:
		return "sqlite"
	default:
		return "unknown"
	}
}

// StripLiterals replaces string literals with empty placeholders and comments
// with a single space so keyword detection cannot be fooled by their contents.
// Quoted identifiers are kept verbatim.
//
// MySQL: # comments, backslash escapes, backtick identifiers.
// Postgres: $tag$ dollar quoting, no backslash escapes.
// SQLite: backtick and [bracket] identifiers, no backslash escapes.
func StripLiterals(f Flavor, sql string) string {
	var result strings.Builder
	result.Grow(len(sql))
	i := 0
	n := len(sql)

	for i < n {
		c := sql[i]

		// Single-line comment starting with --
		if c == '-' && i+1 < n && sql[i+1] == '-' {
			for i < n && sql[i] != '\n' {
				i++
			}
			result.WriteByte(' ')
			continue
		}

		if c == '#' && f == MySQL {
			for i < n && sql[i] != '\n' {
				i++
			}
			result.WriteByte(' ')
			continue
		}

		// Multi-line comment /* */
		if c == '/' && i+1 < n && sql[i+1] == '*' {
			i += 2
			for i+1 < n && !(sql[i] == '*' && sql[i+1] == '/') {
				i++
			}
			i += 2
			result.WriteByte(' ')
			continue
		}

		if c == '$' && f == Postgres {
			if end, ok := dollarQuoteEnd(sql, i); ok {
				i = end
				result.WriteString("''")
				continue
			}
		}

		if c == '\'' {
			i = skipQuoted(sql, i, '\'', f == MySQL)
			result.WriteString("''")
			continue
		}

		// Double quotes are a string in MySQL and an identifier elsewhere.
		if c == '"' {
			if f == MySQL {
				i = skipQuoted(sql, i, '"', true)
				result.WriteString(`""`)
				continue
			}
			end := skipQuoted(sql, i, '"', false)
			result.WriteString(sql[i:end])
			i = end
			continue
		}

		if c == '`' && (f == MySQL || f == SQLite) {
			end := closeIdentifier(sql, i, '`')
			result.WriteString(sql[i:end])
			i = end
			continue
		}

		if c == '[' && f == SQLite {
			end := closeIdentifier(sql, i, ']')
			result.WriteString(sql[i:end])
			i = end
			continue
		}

		result.WriteByte(c)
		i++
	}

	return result.String()
}

// skipQuoted returns the index just past the quoted run opened at start.
// Doubled quotes are escapes; backslash escapes are honoured when requested.
func skipQuoted(sql string, start int, quote byte, backslash bool) int {
	i := start + 1
	n := len(sql)
	for i < n {
		switch {
		case sql[i] == quote && i+1 < n && sql[i+1] == quote:
			i += 2
		case sql[i] == quote:
			return i + 1
		case backslash && sql[i] == '\\' && i+1 < n:
			i += 2
		default:
			i++
		}
	}
	return n
}

func closeIdentifier(sql string, start int, closer byte) int {
	end := strings.IndexByte(sql[start+1:], closer)
	if end < 0 {
		return len(sql)
	}
	return start + 1 + end + 1
}

// dollarQuoteEnd recognises $$...$$ and $tag$...$tag$ starting at i.
func dollarQuoteEnd(sql string, i int) (int, bool) {
	tagEnd := strings.IndexByte(sql[i+1:], '$')
	if tagEnd < 0 {
		return 0, false
	}
	tag := sql[i : i+tagEnd+2]
	for _, r := range tag[1 : len(tag)-1] {
		if !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return 0, false
		}
	}
	closeIdx := strings.Index(sql[i+len(tag):], tag)
	if closeIdx < 0 {
		return 0, false
	}
	return i + len(tag) + closeIdx + len(tag), true
}

// BareIdentifiers removes the quoting around identifiers in text already
// passed through StripLiterals: "name" for Postgres and SQLite, `name` for
// MySQL and SQLite, [name] for SQLite.
func BareIdentifiers(f Flavor, stripped string) string {
	var result strings.Builder
	result.Grow(len(stripped))
	i := 0
	n := len(stripped)

	for i < n {
		c := stripped[i]
		switch {
		case c == '"' && f != MySQL:
			end := skipQuoted(stripped, i, '"', false)
			inner := strings.TrimSuffix(stripped[i+1:end], `"`)
			result.WriteString(strings.ReplaceAll(inner, `""`, `"`))
			i = end
		case c == '`' && (f == MySQL || f == SQLite):
			end := closeIdentifier(stripped, i, '`')
			result.WriteString(strings.TrimSuffix(stripped[i+1:end], "`"))
			i = end
		case c == '[' && f == SQLite:
			end := closeIdentifier(stripped, i, ']')
			result.WriteString(strings.TrimSuffix(stripped[i+1:end], "]"))
			i = end
		default:
			result.WriteByte(c)
			i++
		}
	}

	return result.String()
}
