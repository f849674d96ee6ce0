package sparql

import (
	"fmt"
	"strings"
)

// ResultFormat names a wire format an endpoint can answer in.
type ResultFormat string

const (
	FormatJSON     ResultFormat = "json"
	FormatXML      ResultFormat = "xml"
	FormatCSV      ResultFormat = "csv"
	FormatTSV      ResultFormat = "tsv"
	FormatTurtle   ResultFormat = "turtle"
	FormatNTriples ResultFormat = "ntriples"
	FormatRDFXML   ResultFormat = "rdfxml"
)

var acceptHeaders = map[ResultFormat]string{
	FormatJSON:     "application/sparql-results+json",
	FormatXML:      "application/sparql-results+xml",
	FormatCSV:      "text/csv",
	FormatTSV:      "text/tab-separated-values",
	FormatTurtle:   "text/turtle",
	FormatNTriples: "application/n-triples",
	FormatRDFXML:   "application/rdf+xml",
}

// Accept returns the media type sent in the Accept header for f. Unknown
// formats fall back to JSON.
func (f ResultFormat) Accept() string {
	if h, ok := acceptHeaders[f]; ok {
		return h
	}
	return acceptHeaders[FormatJSON]
}

// Valid reports whether f is one of the known formats.
func (f ResultFormat) Valid() bool {
	_, ok := acceptHeaders[f]
	return ok
}

// ParseFormat accepts a short name ("json", "csv"...) or a media type.
// An empty string yields FormatJSON.
func ParseFormat(s string) (ResultFormat, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return FormatJSON, nil
	}
	if f := ResultFormat(s); f.Valid() {
		return f, nil
	}
	if i := strings.IndexByte(s, ';'); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}
	for f, media := range acceptHeaders {
		if media == s {
			return f, nil
		}
	}
	switch s {
	case "application/json":
		return FormatJSON, nil
	case "application/xml", "text/xml":
		return FormatXML, nil
	case "nt", "n-triples":
		return FormatNTriples, nil
	case "ttl":
		return FormatTurtle, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
}
