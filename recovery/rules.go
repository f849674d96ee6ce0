package recovery

import (
	"regexp"
	"strings"
	"time"

	"github.com/jonwraymond/sparqlops/sparql"
)

// Rule assigns Category to messages matching Pattern. Patterns see the
// lowercased message.
type Rule struct {
	Category Category
	Pattern  *regexp.Regexp
}

// DefaultRules is evaluated in order; the first match wins.
var DefaultRules = []Rule{
	{CategorySyntax, regexp.MustCompile(`syntax error|parse error|lexical error|malformed query|unexpected token|encountered ".*" at line|sp030|sparql compiler|bad request`)},
	{CategoryTimeout, regexp.MustCompile(`timeout|timed out|time limit|deadline exceeded`)},
	{CategoryMemory, regexp.MustCompile(`out of memory|heap space|memory limit|result set too large|too many results|result_too_large|response too large|exceeds \d+ bytes`)},
	{CategoryNetwork, regexp.MustCompile(`connection refused|connection reset|no such host|network is unreachable|broken pipe|\beof\b|\btls\b|certificate|\bssl\b`)},
	{CategoryAuthentication, regexp.MustCompile(`unauthori[sz]ed|authentication|\b401\b|invalid credentials|missing credentials`)},
	{CategoryRateLimit, regexp.MustCompile(`\b429\b|rate.?limit|too many requests|throttl|quota`)},
	{CategoryEndpointUnavailable, regexp.MustCompile(`\b50[23]\b|service unavailable|bad gateway|unavailable|maintenance|overloaded|circuit open`)},
	{CategoryQueryTooComplex, regexp.MustCompile(`too complex|complexity|estimated execution time|query cost|too many joins`)},
	{CategoryResourceNotFound, regexp.MustCompile(`\b404\b|not found|no such graph|unknown graph`)},
	{CategoryPermissionDenied, regexp.MustCompile(`\b403\b|forbidden|permission denied|access denied|not allowed`)},
	{CategoryMalformedResponse, regexp.MustCompile(`malformed|invalid json|unexpected end of json|cannot unmarshal|invalid character|xml syntax`)},
}

// ErrorContext is a categorized fault.
type ErrorContext struct {
	Err         error          `json:"-"`
	Category    Category       `json:"category"`
	Severity    int            `json:"severity"`
	Message     string         `json:"message"`
	Suggestions []string       `json:"suggestions"`
	Strategy    Strategy       `json:"strategy"`
	Recoverable bool           `json:"recoverable"`
	Query       string         `json:"query,omitempty"`
	Endpoint    string         `json:"endpoint,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// NeedsRewrite reports whether only a changed query can succeed.
func (c ErrorContext) NeedsRewrite() bool {
	return PolicyFor(c.Category).NeedsRewrite
}

// Categorize classifies err raised by query against endpoint using
// DefaultRules.
func Categorize(err error, query, endpoint string) ErrorContext {
	return categorize(err, query, endpoint, DefaultRules)
}

func categorize(err error, query, endpoint string, rules []Rule) ErrorContext {
	msg := ""
	if err != nil {
		msg = err.Error()
	}

	cat, matchedBy := classify(err, msg, rules)
	p := PolicyFor(cat)

	return ErrorContext{
		Err:         err,
		Category:    cat,
		Severity:    p.Severity,
		Message:     msg,
		Suggestions: Suggestions(cat, query),
		Strategy:    p.Strategy,
		Recoverable: p.Recoverable,
		Query:       query,
		Endpoint:    endpoint,
		Timestamp:   time.Now(),
		Metadata: map[string]any{
			"matched_by":    matchedBy,
			"needs_rewrite": p.NeedsRewrite,
		},
	}
}

// classify tries the typed kind first, then the message rules.
func classify(err error, msg string, rules []Rule) (Category, string) {
	if err == nil {
		return CategoryUnknown, "none"
	}
	if cat, ok := kindCategories[sparql.KindOf(err)]; ok {
		return cat, "kind"
	}

	lower := strings.ToLower(msg)
	for _, r := range rules {
		if r.Pattern.MatchString(lower) {
			return r.Category, "pattern"
		}
	}
	return CategoryUnknown, "none"
}
