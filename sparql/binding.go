package sparql

import "fmt"

// BindingKind is the RDF term type of a bound value.
type BindingKind int

const (
	KindURI BindingKind = iota
	KindLiteral
	KindBNode
	KindTypedLiteral
)

// String returns the SPARQL JSON results name of the kind.
func (k BindingKind) String() string {
	switch k {
	case KindURI:
		return "uri"
	case KindLiteral:
		return "literal"
	case KindBNode:
		return "bnode"
	case KindTypedLiteral:
		return "typed-literal"
	default:
		return "unknown"
	}
}

// MarshalText encodes the kind by name.
func (k BindingKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind name.
func (k *BindingKind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "uri":
		*k = KindURI
	case "literal":
		*k = KindLiteral
	case "bnode":
		*k = KindBNode
	case "typed-literal":
		*k = KindTypedLiteral
	default:
		return fmt.Errorf("sparql: unknown binding kind %q", b)
	}
	return nil
}

// Common XML Schema datatypes.
const (
	XSDString  = "http://www.w3.org/2001/XMLSchema#string"
	XSDBoolean = "http://www.w3.org/2001/XMLSchema#boolean"
	XSDInteger = "http://www.w3.org/2001/XMLSchema#integer"
	XSDDecimal = "http://www.w3.org/2001/XMLSchema#decimal"
	XSDDouble  = "http://www.w3.org/2001/XMLSchema#double"
)

// Binding is one variable-to-value assignment in a result row.
type Binding struct {
	Variable string      `json:"variable"`
	Value    string      `json:"value"`
	Kind     BindingKind `json:"kind"`
	Datatype string      `json:"datatype,omitempty"`
	Language string      `json:"language,omitempty"`
}

// Row is one solution: variable name to binding. Unbound variables are
// absent.
type Row map[string]Binding

// Values flattens a row to variable -> lexical value.
func (r Row) Values() map[string]string {
	out := make(map[string]string, len(r))
	for k, b := range r {
		out[k] = b.Value
	}
	return out
}

// AskVariable is the variable name used for the synthetic binding that
// carries an ASK answer.
const AskVariable = "boolean"

func askRow(answer bool) Row {
	v := "false"
	if answer {
		v = "true"
	}
	return Row{AskVariable: {
		Variable: AskVariable,
		Value:    v,
		Kind:     KindTypedLiteral,
		Datatype: XSDBoolean,
	}}
}
