package sparql

import (
	"regexp"
	"strings"
)

// MaxOptionalHeuristic is the OPTIONAL count above which a query is flagged
// as likely to be expensive.
const MaxOptionalHeuristic = 3

// QueryShape is a lexical summary of a query. It is a heuristic scan, not
// a parse.
type QueryShape struct {
	Form              string // SELECT, ASK, CONSTRUCT, DESCRIBE, UPDATE or ""
	HasLimit          bool
	OptionalCount     int
	UnionCount        int
	HasTripleWildcard bool
}

// IsUpdate reports whether the query modifies data.
func (s QueryShape) IsUpdate() bool { return s.Form == "UPDATE" }

// IsAsk reports whether the query is an ASK.
func (s QueryShape) IsAsk() bool { return s.Form == "ASK" }

// TooManyOptionals reports whether OptionalCount exceeds MaxOptionalHeuristic.
func (s QueryShape) TooManyOptionals() bool { return s.OptionalCount > MaxOptionalHeuristic }

var (
	reLimit    = regexp.MustCompile(`(?i)\bLIMIT\s+\d+`)
	reOptional = regexp.MustCompile(`(?i)\bOPTIONAL\b`)
	reUnion    = regexp.MustCompile(`(?i)\bUNION\b`)
	reWildcard = regexp.MustCompile(`\?\w+\s+\?\w+\s+\?\w+`)
	reForm     = regexp.MustCompile(`(?i)\b(SELECT|ASK|CONSTRUCT|DESCRIBE|INSERT|DELETE|LOAD|CLEAR|DROP|CREATE|COPY|MOVE|ADD)\b`)
)

// Analyze scans query text for the features the recovery heuristics care
// about. Keywords inside IRIs, string literals and comments are ignored.
func Analyze(query string) QueryShape {
	q := maskLexical(query)

	shape := QueryShape{
		HasLimit:          reLimit.MatchString(q),
		OptionalCount:     len(reOptional.FindAllStringIndex(q, -1)),
		UnionCount:        len(reUnion.FindAllStringIndex(q, -1)),
		HasTripleWildcard: reWildcard.MatchString(q),
	}

	if m := reForm.FindStringSubmatch(q); m != nil {
		switch kw := strings.ToUpper(m[1]); kw {
		case "SELECT", "ASK", "CONSTRUCT", "DESCRIBE":
			shape.Form = kw
		default:
			shape.Form = "UPDATE"
		}
	}

	return shape
}

// maskLexical blanks IRI references, string literals and comments so that
// keyword scans only see query syntax. Masked bytes become spaces; newlines
// are kept.
func maskLexical(query string) string {
	b := []byte(query)
	blank := func(from, to int) {
		for i := from; i < to && i < len(b); i++ {
			if b[i] != '\n' {
				b[i] = ' '
			}
		}
	}

	for i := 0; i < len(b); {
		switch c := b[i]; c {
		case '<':
			end := iriEnd(b, i)
			if end < 0 {
				i++
				continue
			}
			blank(i, end+1)
			i = end + 1
		case '"', '\'':
			end := stringEnd(b, i)
			blank(i, end)
			i = end
		case '#':
			end := i
			for end < len(b) && b[end] != '\n' {
				end++
			}
			blank(i, end)
			i = end
		default:
			i++
		}
	}
	return string(b)
}

// iriEnd returns the index of the '>' closing the IRI reference opened at
// start, or -1 when the '<' is a comparison operator.
func iriEnd(b []byte, start int) int {
	for i := start + 1; i < len(b); i++ {
		switch c := b[i]; {
		case c == '>':
			return i
		case c <= ' ', strings.IndexByte("<\"{}|^`\\", c) >= 0:
			return -1
		}
	}
	return -1
}

// stringEnd returns the index just past the literal opened at start,
// handling long (triple-quoted) forms and backslash escapes. An
// unterminated literal runs to the end of the query.
func stringEnd(b []byte, start int) int {
	q := b[start]
	long := start+2 < len(b) && b[start+1] == q && b[start+2] == q
	i := start + 1
	if long {
		i = start + 3
	}
	for i < len(b) {
		switch {
		case b[i] == '\\':
			i += 2
		case long && b[i] == q && i+2 < len(b) && b[i+1] == q && b[i+2] == q:
			return i + 3
		case !long && b[i] == q:
			return i + 1
		case !long && b[i] == '\n':
			return i
		default:
			i++
		}
	}
	return len(b)
}
