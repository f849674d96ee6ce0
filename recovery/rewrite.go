package recovery

import (
	"strconv"
	"strings"

	"github.com/jonwraymond/sparqlops/sparql"
)

// DefaultLimit is injected by Rewrite when the handler has none configured.
const DefaultLimit = 1000

// Rewrite appends LIMIT limit to a query that lacks one. ASK and update
// requests, and queries that already have a LIMIT, come back unchanged
// with changed == false.
func Rewrite(query string, limit int) (rewritten string, changed bool) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	shape := sparql.Analyze(query)
	if shape.HasLimit || shape.IsAsk() || shape.IsUpdate() || strings.TrimSpace(query) == "" {
		return query, false
	}
	return strings.TrimRight(query, " \t\r\n;") + "\nLIMIT " + strconv.Itoa(limit), true
}
