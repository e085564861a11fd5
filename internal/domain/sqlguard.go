package domain

import "strings"

// forbiddenSQLKeywords are mutation/DDL keywords that must never reach the
// database. A statement whose leading keyword (or the first keyword after a
// `;` separator) matches one of these is rejected.
var forbiddenSQLKeywords = []string{
	"DELETE", "INSERT", "UPDATE", "DROP", "ALTER", "CREATE", "TRUNCATE", "REPLACE",
}

// AdmitSelect classifies a raw SQL string as read-only, returning nil, or
// rejects it with ErrSafetyViolation carrying the offending keyword.
//
// The gate is deliberately conservative: it does not parse string literals
// or subqueries. Every `;`-separated segment must independently begin with
// SELECT after leading comments and whitespace are stripped, so a forbidden
// keyword in a statement-leading position is rejected even where a full SQL
// parser might prove it harmless. False rejects are acceptable; false
// admits are not.
func AdmitSelect(query string) error {
	const op = "sqlguard.AdmitSelect"

	checked := 0
	for _, seg := range strings.Split(query, ";") {
		stmt := stripLeadingSQLNoise(seg)
		if stmt == "" {
			// Trailing separator or comment-only segment.
			continue
		}
		checked++

		kw := strings.ToUpper(leadingSQLKeyword(stmt))
		for _, forbidden := range forbiddenSQLKeywords {
			if kw == forbidden {
				return NewDomainError(op, ErrSafetyViolation, "forbidden keyword "+forbidden)
			}
		}
		if kw != "SELECT" {
			return NewDomainError(op, ErrSafetyViolation, "statement must begin with SELECT")
		}
	}
	if checked == 0 {
		return NewDomainError(op, ErrSafetyViolation, "empty statement")
	}
	return nil
}

// stripLeadingSQLNoise removes leading whitespace and SQL comments (`--`
// line comments and `/* */` block comments) until real statement text
// begins. An unterminated block comment yields the empty string: nothing
// provably remains.
func stripLeadingSQLNoise(s string) string {
	for {
		s = strings.TrimLeft(s, " \t\r\n")
		switch {
		case strings.HasPrefix(s, "--"):
			nl := strings.IndexByte(s, '\n')
			if nl < 0 {
				return ""
			}
			s = s[nl+1:]
		case strings.HasPrefix(s, "/*"):
			end := strings.Index(s, "*/")
			if end < 0 {
				return ""
			}
			s = s[end+2:]
		default:
			return s
		}
	}
}

// leadingSQLKeyword returns the initial run of identifier characters.
func leadingSQLKeyword(s string) string {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_' {
			continue
		}
		return s[:i]
	}
	return s
}
