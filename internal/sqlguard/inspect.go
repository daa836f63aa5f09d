package sqlguard

import (
	"fmt"
	"regexp"
	"strings"
)

// Violation names the construct that made Inspect reject a statement.
type Violation struct {
	Construct string
	Reason    string
}

func (v *Violation) Error() string {
	return fmt.Sprintf("query contains %s: %s", v.Reason, v.Construct)
}

type rule struct {
	re     *regexp.Regexp
	desc   string
	reason string
	// bare rules see quoted identifiers unwrapped, so "pg_sleep"(1) matches
	// like pg_sleep(1). Keyword rules keep the quotes to spare identifiers
	// such as "update".
	bare bool
}

func keyword(word string) rule {
	return rule{
		re:     regexp.MustCompile(`(?i)(?:^|[^a-zA-Z_])` + word + `(?:[^a-zA-Z_]|$)`),
		desc:   word,
		reason: "forbidden keyword",
	}
}

func function(name string) rule {
	return rule{
		re:     regexp.MustCompile(`(?i)\b` + name + `\s*\(`),
		desc:   name + "()",
		reason: "forbidden function",
		bare:   true,
	}
}

func pattern(expr, desc string) rule {
	return rule{re: regexp.MustCompile(expr), desc: desc, reason: "forbidden pattern", bare: true}
}

// modifyingKeywords may hide behind an accepted prefix, e.g.
// "EXPLAIN ANALYZE DELETE ..." or "WITH x AS (...) UPDATE ...".
var modifyingKeywords = []rule{
	keyword("INSERT"),
	keyword("UPDATE"),
	keyword("DELETE"),
	keyword("MERGE"),
	keyword("TRUNCATE"),
	keyword("GRANT"),
	keyword("REVOKE"),
}

// definitionKeywords are allowed after SHOW (SHOW CREATE TABLE and friends).
var definitionKeywords = []rule{
	keyword("CREATE"),
	keyword("DROP"),
	keyword("ALTER"),
}

var setStatement = pattern(`(?i)(?:^|;)\s*SET\b`, "SET")

var flavorRules = map[Flavor][]rule{
	MySQL: {
		pattern(`(?i)\bINTO\s+OUTFILE\b`, "INTO OUTFILE"),
		pattern(`(?i)\bINTO\s+DUMPFILE\b`, "INTO DUMPFILE"),
		pattern(`(?i)\bINTO\s+@`, "INTO @variable"),
		function("LOAD_FILE"),
		function("SLEEP"),
		function("BENCHMARK"),
		function("GET_LOCK"),
		function("RELEASE_LOCK"),
		function("IS_FREE_LOCK"),
		function("IS_USED_LOCK"),
		function("WAIT_FOR_EXECUTED_GTID_SET"),
		function("WAIT_UNTIL_SQL_THREAD_AFTER_GTIDS"),
		function("MASTER_POS_WAIT"),
		function("SOURCE_POS_WAIT"),
	},
	Postgres: {
		function("pg_read_file"),
		function("pg_read_binary_file"),
		function("pg_ls_dir"),
		function("lo_import"),
		function("lo_export"),
		function("pg_sleep"),
		function("pg_sleep_for"),
		function("pg_sleep_until"),
		function("pg_advisory_lock"),
		function("pg_advisory_xact_lock"),
		function("pg_try_advisory_lock"),
		keyword("COPY"),
		keyword("LISTEN"),
		keyword("NOTIFY"),
	},
	SQLite: {
		function("load_extension"),
		function("writefile"),
		function("edit"),
		function("fts3_tokenizer"),
		pattern(`(?i)\bPRAGMA\s+[\w.]+\s*=`, "PRAGMA write"),
		keyword("ATTACH"),
		keyword("DETACH"),
	},
}

// Inspect applies dialect-specific checks to a statement IsReadOnly already
// accepted. Every rule matches the text with literals and comments stripped,
// so values such as 'DROP TABLE' in a WHERE clause are not flagged and a
// comment cannot split a function name from its argument list.
func Inspect(f Flavor, sqlText string) error {
	cleaned := StripLiterals(f, sqlText)

	for _, r := range modifyingKeywords {
		if r.re.MatchString(cleaned) {
			return &Violation{Construct: r.desc, Reason: r.reason}
		}
	}

	isShow := strings.HasPrefix(strings.ToUpper(strings.TrimLeft(strings.TrimSpace(cleaned), "(")), "SHOW")
	if !isShow {
		for _, r := range definitionKeywords {
			if r.re.MatchString(cleaned) {
				return &Violation{Construct: r.desc, Reason: r.reason}
			}
		}
	}

	if setStatement.re.MatchString(cleaned) {
		return &Violation{Construct: setStatement.desc, Reason: "statement"}
	}

	bare := BareIdentifiers(f, cleaned)
	for _, r := range flavorRules[f] {
		target := cleaned
		if r.bare {
			target = bare
		}
		if r.re.MatchString(target) {
			return &Violation{Construct: r.desc, Reason: r.reason}
		}
	}
	return nil
}
