package executor

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/jonwraymond/sparqlops/sparql"
)

// Merge combines successful answers with strategy. errs are the failures
// of the endpoints that did not answer; they are listed in
// Metadata["errors"]. Results that are not successes are moved to errs.
//
// When nothing succeeded Merge returns a failed result with no rows.
func Merge(results []sparql.QueryResult, strategy Strategy, errs []error) sparql.QueryResult {
	ok := make([]sparql.QueryResult, 0, len(results))
	for _, r := range results {
		if r.OK() {
			ok = append(ok, r)
		} else {
			errs = append(errs, r.Err())
		}
	}
	messages := errorMessages(errs)

	if len(ok) == 0 {
		msg := "no endpoint answered"
		if len(messages) > 0 {
			msg = strings.Join(messages, "; ")
		}
		r := sparql.NewFailure(fmt.Errorf("%w: %s", ErrAllEndpointsFailed, msg), 0)
		r.Status = sparql.StatusFailed
		r.Metadata["errors"] = messages
		r.Metadata["successful_endpoints"] = 0
		r.Metadata["strategy"] = string(strategy)
		return r
	}

	var merged sparql.QueryResult
	switch strategy {
	case StrategySequential:
		return ok[0]
	case StrategyIntersection:
		merged = intersect(ok)
	default:
		merged = union(ok)
	}

	merged.Metadata["successful_endpoints"] = len(ok)
	merged.Metadata["strategy"] = string(strategy)
	if len(messages) > 0 {
		merged.Metadata["errors"] = messages
	}
	return merged
}

func union(results []sparql.QueryResult) sparql.QueryResult {
	var (
		rows    []sparql.Row
		vars    []string
		slowest time.Duration
	)
	for _, r := range results {
		rows = append(rows, r.Bindings...)
		for _, v := range r.Variables {
			if !slices.Contains(vars, v) {
				vars = append(vars, v)
			}
		}
		slowest = max(slowest, r.ExecutionTime)
	}
	return sparql.NewSuccess(vars, rows, slowest)
}

// intersect keeps the rows of the first answer whose (variable, value)
// tuples appear in every other answer. Duplicates collapse.
func intersect(results []sparql.QueryResult) sparql.QueryResult {
	sets := make([]map[string]bool, len(results))
	var slowest time.Duration
	for i, r := range results {
		sets[i] = make(map[string]bool, len(r.Bindings))
		for _, row := range r.Bindings {
			sets[i][rowKey(row)] = true
		}
		slowest = max(slowest, r.ExecutionTime)
	}

	var rows []sparql.Row
	seen := make(map[string]bool)
	for _, row := range results[0].Bindings {
		k := rowKey(row)
		if seen[k] {
			continue
		}
		seen[k] = true

		shared := true
		for _, set := range sets[1:] {
			if !set[k] {
				shared = false
				break
			}
		}
		if shared {
			rows = append(rows, row)
		}
	}
	return sparql.NewSuccess(results[0].Variables, rows, slowest)
}

// rowKey renders a row as its sorted (variable, value) tuples.
func rowKey(row sparql.Row) string {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%q=%q;", k, row[k].Value)
	}
	return b.String()
}

func errorMessages(errs []error) []string {
	out := make([]string, 0, len(errs))
	for _, err := range errs {
		if err != nil {
			out = append(out, err.Error())
		}
	}
	return out
}
