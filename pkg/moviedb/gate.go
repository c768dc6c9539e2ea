package moviedb

import (
	"strings"

	"github.com/rs/zerolog/log"
)

// BannedKeywords are denied anywhere in a statement, case-insensitively.
// Matching is by substring, so identifiers such as "last_updated" are denied
// too. The connection is also opened read-only.
var BannedKeywords = []string{
	"delete", "drop", "update", "insert", "alter",
	"truncate", "grant", "revoke", "shutdown",
}

// CheckQuery returns the first banned keyword found in sql, and whether the
// statement is allowed.
func CheckQuery(sql string) (string, bool) {
	lower := strings.ToLower(sql)
	for _, kw := range BannedKeywords {
		if strings.Contains(lower, kw) {
			log.Warn().Str("component", "moviedb").Str("keyword", kw).Str("sql", sql).Msg("banned keyword in query")
			return kw, false
		}
	}
	return "", true
}

// IsQuerySafe reports whether sql passes the keyword gate.
func IsQuerySafe(sql string) bool {
	_, ok := CheckQuery(sql)
	return ok
}
