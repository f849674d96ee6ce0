package sparql

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Results is a fully decoded SPARQL answer.
type Results struct {
	Variables []string
	Rows      []Row

	// Boolean is set for ASK answers; Rows then holds one synthetic row.
	Boolean *bool
}

// Parse decodes a complete payload in format f. Graph formats other than
// N-Triples are not decoded and return ErrUnsupportedFormat.
func Parse(f ResultFormat, r io.Reader) (*Results, error) {
	switch f {
	case FormatJSON, "":
		return ParseJSON(r)
	case FormatXML:
		return ParseXML(r)
	case FormatCSV:
		return ParseCSV(r)
	case FormatTSV:
		return ParseTSV(r)
	case FormatNTriples:
		return ParseNTriples(r)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, f)
	}
}

func malformed(format string, err error) error {
	return NewFault(KindMalformed, "decode "+format+" results", err)
}

// jsonTerm is one cell of a SPARQL JSON results binding.
type jsonTerm struct {
	Type     string `json:"type"`
	Value    string `json:"value"`
	Datatype string `json:"datatype,omitempty"`
	Lang     string `json:"xml:lang,omitempty"`
}

func (t jsonTerm) binding(variable string) Binding {
	b := Binding{
		Variable: variable,
		Value:    t.Value,
		Datatype: t.Datatype,
		Language: t.Lang,
	}
	switch t.Type {
	case "uri":
		b.Kind = KindURI
	case "bnode":
		b.Kind = KindBNode
	case "typed-literal":
		b.Kind = KindTypedLiteral
	default:
		if t.Datatype != "" {
			b.Kind = KindTypedLiteral
		} else {
			b.Kind = KindLiteral
		}
	}
	return b
}

func jsonRow(raw map[string]jsonTerm) Row {
	row := make(Row, len(raw))
	for name, term := range raw {
		row[name] = term.binding(name)
	}
	return row
}

type jsonHead struct {
	Vars []string `json:"vars"`
}

type jsonResults struct {
	Head    jsonHead `json:"head"`
	Boolean *bool    `json:"boolean"`
	Results *struct {
		Bindings []map[string]jsonTerm `json:"bindings"`
	} `json:"results"`
}

// ParseJSON decodes application/sparql-results+json, both the SELECT shape
// (results.bindings) and the ASK shape (boolean).
func ParseJSON(r io.Reader) (*Results, error) {
	var doc jsonResults
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, malformed("json", err)
	}

	if doc.Boolean != nil {
		return &Results{
			Variables: []string{AskVariable},
			Rows:      []Row{askRow(*doc.Boolean)},
			Boolean:   doc.Boolean,
		}, nil
	}

	if doc.Results == nil {
		return nil, malformed("json", errors.New(`neither "results" nor "boolean" present`))
	}

	rows := make([]Row, 0, len(doc.Results.Bindings))
	for _, raw := range doc.Results.Bindings {
		rows = append(rows, jsonRow(raw))
	}

	return &Results{Variables: doc.Head.Vars, Rows: rows}, nil
}

type xmlLiteral struct {
	Value    string `xml:",chardata"`
	Datatype string `xml:"datatype,attr"`
	Lang     string `xml:"lang,attr"`
}

type xmlBinding struct {
	Name    string      `xml:"name,attr"`
	URI     *string     `xml:"uri"`
	BNode   *string     `xml:"bnode"`
	Literal *xmlLiteral `xml:"literal"`
}

type xmlResults struct {
	XMLName xml.Name `xml:"sparql"`
	Head    struct {
		Variables []struct {
			Name string `xml:"name,attr"`
		} `xml:"variable"`
	} `xml:"head"`
	Boolean *bool `xml:"boolean"`
	Results *struct {
		Result []struct {
			Bindings []xmlBinding `xml:"binding"`
		} `xml:"result"`
	} `xml:"results"`
}

// ParseXML decodes application/sparql-results+xml.
func ParseXML(r io.Reader) (*Results, error) {
	var doc xmlResults
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, malformed("xml", err)
	}

	vars := make([]string, 0, len(doc.Head.Variables))
	for _, v := range doc.Head.Variables {
		vars = append(vars, v.Name)
	}

	if doc.Boolean != nil {
		return &Results{
			Variables: []string{AskVariable},
			Rows:      []Row{askRow(*doc.Boolean)},
			Boolean:   doc.Boolean,
		}, nil
	}

	if doc.Results == nil {
		return &Results{Variables: vars, Rows: []Row{}}, nil
	}

	rows := make([]Row, 0, len(doc.Results.Result))
	for _, res := range doc.Results.Result {
		row := make(Row, len(res.Bindings))
		for _, xb := range res.Bindings {
			b := Binding{Variable: xb.Name}
			switch {
			case xb.URI != nil:
				b.Kind = KindURI
				b.Value = strings.TrimSpace(*xb.URI)
			case xb.BNode != nil:
				b.Kind = KindBNode
				b.Value = strings.TrimSpace(*xb.BNode)
			case xb.Literal != nil:
				b.Value = xb.Literal.Value
				b.Datatype = xb.Literal.Datatype
				b.Language = xb.Literal.Lang
				b.Kind = KindLiteral
				if b.Datatype != "" {
					b.Kind = KindTypedLiteral
				}
			default:
				continue
			}
			row[xb.Name] = b
		}
		rows = append(rows, row)
	}

	return &Results{Variables: vars, Rows: rows}, nil
}

// ParseCSV decodes text/csv results. The header row names the variables and
// empty cells are treated as unbound. CSV carries no term types, so values
// are typed by shape: "_:" prefixes are blank nodes, absolute IRIs are URIs,
// everything else is a plain literal.
func ParseCSV(r io.Reader) (*Results, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return &Results{Variables: []string{}, Rows: []Row{}}, nil
	}
	if err != nil {
		return nil, malformed("csv", err)
	}
	vars := make([]string, len(header))
	for i, h := range header {
		vars[i] = strings.TrimPrefix(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")), "?")
	}

	rows := []Row{}
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, malformed("csv", err)
		}
		row := make(Row, len(record))
		for i, cell := range record {
			if i >= len(vars) || cell == "" {
				continue
			}
			row[vars[i]] = Binding{Variable: vars[i], Value: cell, Kind: guessKind(cell)}
		}
		rows = append(rows, row)
	}

	return &Results{Variables: vars, Rows: rows}, nil
}

func guessKind(v string) BindingKind {
	switch {
	case strings.HasPrefix(v, "_:"):
		return KindBNode
	case looksLikeIRI(v):
		return KindURI
	default:
		return KindLiteral
	}
}

func looksLikeIRI(v string) bool {
	if strings.ContainsAny(v, " \t\n<>\"") {
		return false
	}
	for _, scheme := range []string{"http://", "https://", "urn:", "mailto:", "ftp://", "file:/"} {
		if strings.HasPrefix(v, scheme) {
			return true
		}
	}
	return false
}

// ParseTSV decodes text/tab-separated-values results, whose cells use
// N-Triples-like term syntax.
func ParseTSV(r io.Reader) (*Results, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)

	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return nil, malformed("tsv", err)
		}
		return &Results{Variables: []string{}, Rows: []Row{}}, nil
	}

	header := strings.Split(strings.TrimRight(sc.Text(), "\r"), "\t")
	vars := make([]string, len(header))
	for i, h := range header {
		vars[i] = strings.TrimPrefix(strings.TrimSpace(h), "?")
	}

	rows := []Row{}
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		cells := strings.Split(line, "\t")
		row := make(Row, len(cells))
		for i, cell := range cells {
			if i >= len(vars) || strings.TrimSpace(cell) == "" {
				continue
			}
			b, err := parseTerm(strings.TrimSpace(cell))
			if err != nil {
				return nil, malformed("tsv", err)
			}
			b.Variable = vars[i]
			row[vars[i]] = b
		}
		rows = append(rows, row)
	}
	if err := sc.Err(); err != nil {
		return nil, malformed("tsv", err)
	}

	return &Results{Variables: vars, Rows: rows}, nil
}

// Variables produced by ParseNTriples.
var tripleVariables = []string{"subject", "predicate", "object"}

// ParseNTriples decodes application/n-triples (CONSTRUCT/DESCRIBE answers)
// into one row per triple bound to subject, predicate and object.
func ParseNTriples(r io.Reader) (*Results, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)

	rows := []Row{}
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimSpace(strings.TrimSuffix(line, "."))

		terms, err := splitTerms(line)
		if err != nil {
			return nil, malformed("n-triples", err)
		}
		if len(terms) != 3 {
			return nil, malformed("n-triples", fmt.Errorf("expected 3 terms, got %d in %q", len(terms), line))
		}

		row := make(Row, 3)
		for i, raw := range terms {
			b, err := parseTerm(raw)
			if err != nil {
				return nil, malformed("n-triples", err)
			}
			b.Variable = tripleVariables[i]
			row[b.Variable] = b
		}
		rows = append(rows, row)
	}
	if err := sc.Err(); err != nil {
		return nil, malformed("n-triples", err)
	}

	return &Results{Variables: append([]string(nil), tripleVariables...), Rows: rows}, nil
}

// splitTerms splits an N-Triples statement on whitespace outside quotes and
// IRIs.
func splitTerms(line string) ([]string, error) {
	var terms []string
	i := 0
	for i < len(line) {
		for i < len(line) && (line[i] == ' ' || line[i] == '\t') {
			i++
		}
		if i >= len(line) {
			break
		}
		start := i
		switch line[i] {
		case '<':
			end := strings.IndexByte(line[i:], '>')
			if end < 0 {
				return nil, fmt.Errorf("unterminated IRI in %q", line)
			}
			i += end + 1
		case '"':
			i++
			for i < len(line) && line[i] != '"' {
				if line[i] == '\\' {
					i++
				}
				i++
			}
			if i >= len(line) {
				return nil, fmt.Errorf("unterminated literal in %q", line)
			}
			i++
			for i < len(line) && line[i] != ' ' && line[i] != '\t' {
				i++
			}
		default:
			for i < len(line) && line[i] != ' ' && line[i] != '\t' {
				i++
			}
		}
		terms = append(terms, line[start:i])
	}
	return terms, nil
}

// parseTerm decodes one term in N-Triples / SPARQL TSV syntax.
func parseTerm(s string) (Binding, error) {
	switch {
	case strings.HasPrefix(s, "<") && strings.HasSuffix(s, ">"):
		return Binding{Value: s[1 : len(s)-1], Kind: KindURI}, nil

	case strings.HasPrefix(s, "_:"):
		return Binding{Value: s[2:], Kind: KindBNode}, nil

	case strings.HasPrefix(s, `"`):
		end := closingQuote(s)
		if end < 0 {
			return Binding{}, fmt.Errorf("unterminated literal %q", s)
		}
		b := Binding{Value: unescapeLiteral(s[1:end]), Kind: KindLiteral}
		rest := s[end+1:]
		switch {
		case strings.HasPrefix(rest, "@"):
			b.Language = rest[1:]
		case strings.HasPrefix(rest, "^^<") && strings.HasSuffix(rest, ">"):
			b.Datatype = rest[3 : len(rest)-1]
			b.Kind = KindTypedLiteral
		}
		return b, nil

	case s == "true" || s == "false":
		return Binding{Value: s, Kind: KindTypedLiteral, Datatype: XSDBoolean}, nil

	default:
		if dt := numericDatatype(s); dt != "" {
			return Binding{Value: s, Kind: KindTypedLiteral, Datatype: dt}, nil
		}
		return Binding{}, fmt.Errorf("unrecognised term %q", s)
	}
}

func closingQuote(s string) int {
	for i := 1; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '"':
			return i
		}
	}
	return -1
}

var literalUnescaper = strings.NewReplacer(
	`\t`, "\t",
	`\n`, "\n",
	`\r`, "\r",
	`\"`, `"`,
	`\'`, `'`,
	`\\`, `\`,
)

func unescapeLiteral(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	return literalUnescaper.Replace(s)
}

func numericDatatype(s string) string {
	if s == "" {
		return ""
	}
	body := strings.TrimLeft(s, "+-")
	if body == "" {
		return ""
	}
	digits, dot, exp := 0, false, false
	for i := 0; i < len(body); i++ {
		c := body[i]
		switch {
		case c >= '0' && c <= '9':
			digits++
		case c == '.' && !dot && !exp:
			dot = true
		case (c == 'e' || c == 'E') && !exp && digits > 0:
			exp = true
			if i+1 < len(body) && (body[i+1] == '+' || body[i+1] == '-') {
				i++
			}
		default:
			return ""
		}
	}
	switch {
	case digits == 0:
		return ""
	case exp:
		return XSDDouble
	case dot:
		return XSDDecimal
	default:
		return XSDInteger
	}
}
