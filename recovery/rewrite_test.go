package recovery

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRewrite(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		limit   int
		want    string
		changed bool
	}{
		{
			name:    "adds limit",
			query:   "SELECT ?s WHERE { ?s ?p ?o }",
			limit:   100,
			want:    "SELECT ?s WHERE { ?s ?p ?o }\nLIMIT 100",
			changed: true,
		},
		{
			name:    "trims trailing whitespace and semicolon",
			query:   "SELECT ?s WHERE { ?s ?p ?o } ;\n",
			limit:   10,
			want:    "SELECT ?s WHERE { ?s ?p ?o }\nLIMIT 10",
			changed: true,
		},
		{
			name:    "default limit",
			query:   "SELECT ?s WHERE { ?s ?p ?o }",
			want:    "SELECT ?s WHERE { ?s ?p ?o }\nLIMIT 1000",
			changed: true,
		},
		{
			name:  "existing limit",
			query: "SELECT ?s WHERE { ?s ?p ?o } LIMIT 5",
			limit: 100,
			want:  "SELECT ?s WHERE { ?s ?p ?o } LIMIT 5",
		},
		{
			name:  "ask",
			query: "ASK { ?s ?p ?o }",
			limit: 100,
			want:  "ASK { ?s ?p ?o }",
		},
		{
			name:  "update",
			query: "INSERT DATA { <http://a> <http://b> <http://c> }",
			limit: 100,
			want:  "INSERT DATA { <http://a> <http://b> <http://c> }",
		},
		{
			name:  "empty",
			query: "  ",
			limit: 100,
			want:  "  ",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, changed := Rewrite(tt.query, tt.limit)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.changed, changed)
		})
	}
}
