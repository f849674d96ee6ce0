package sparql

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status is the terminal (or pending) state of a query execution.
//
//	Pending -> Running -> {Success, Failed, Timeout, Invalid}
type Status int

const (
	StatusPending Status = iota
	StatusRunning
	StatusSuccess
	StatusFailed
	StatusTimeout
	StatusInvalid
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusSuccess:
		return "success"
	case StatusFailed:
		return "failed"
	case StatusTimeout:
		return "timeout"
	case StatusInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// MarshalText encodes the status by name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a status name.
func (s *Status) UnmarshalText(b []byte) error {
	for c := StatusPending; c <= StatusInvalid; c++ {
		if c.String() == string(b) {
			*s = c
			return nil
		}
	}
	return fmt.Errorf("sparql: unknown status %q", b)
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s >= StatusSuccess
}

// QueryResult is the uniform outcome of one execution. It is never mutated
// after being returned. On success RowCount == len(Bindings).
type QueryResult struct {
	Status        Status         `json:"status"`
	Bindings      []Row          `json:"bindings"`
	Variables     []string       `json:"variables"`
	RowCount      int            `json:"row_count"`
	ExecutionTime time.Duration  `json:"execution_time"`
	ErrorMessage  string         `json:"error_message,omitempty"`
	ErrorKind     ErrorKind      `json:"error_kind,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// OK reports whether the result is a success.
func (r QueryResult) OK() bool {
	return r.Status == StatusSuccess
}

// Err rebuilds the fault that produced a failed result, or nil on success.
func (r QueryResult) Err() error {
	if r.Status == StatusSuccess || r.Status == StatusPending || r.Status == StatusRunning {
		return nil
	}
	kind := r.ErrorKind
	if kind == KindUnknown {
		switch r.Status {
		case StatusTimeout:
			kind = KindTimeout
		case StatusInvalid:
			kind = KindSyntax
		}
	}
	f := &Fault{Kind: kind, Message: r.ErrorMessage}
	f.Message, f.StatusCode = trimFaultPrefix(r.ErrorMessage, kind)
	return f
}

// trimFaultPrefix removes the "sparql: <kind> (HTTP n): " text a Fault of
// kind put in front of msg, so the rebuilt fault prints msg unchanged.
func trimFaultPrefix(msg string, kind ErrorKind) (string, int) {
	rest, ok := strings.CutPrefix(msg, "sparql: "+kind.String())
	if !ok {
		return msg, 0
	}
	code := 0
	if after, found := strings.CutPrefix(rest, " (HTTP "); found {
		num, tail, closed := strings.Cut(after, ")")
		n, err := strconv.Atoi(num)
		if !closed || err != nil {
			return msg, 0
		}
		code, rest = n, tail
	}
	switch {
	case rest == "":
		return "", code
	case strings.HasPrefix(rest, ": "):
		return rest[2:], code
	default:
		return msg, 0
	}
}

// NewSuccess builds a success result over rows.
func NewSuccess(vars []string, rows []Row, elapsed time.Duration) QueryResult {
	if rows == nil {
		rows = []Row{}
	}
	return QueryResult{
		Status:        StatusSuccess,
		Bindings:      rows,
		Variables:     vars,
		RowCount:      len(rows),
		ExecutionTime: elapsed,
		Metadata:      map[string]any{},
	}
}

// NewFailure builds a failed result from err. Timeout faults yield
// StatusTimeout and syntax faults StatusInvalid; everything else is
// StatusFailed.
func NewFailure(err error, elapsed time.Duration) QueryResult {
	kind := KindOf(err)
	status := StatusFailed
	switch kind {
	case KindTimeout:
		status = StatusTimeout
	case KindSyntax:
		status = StatusInvalid
	}
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return QueryResult{
		Status:        status,
		Bindings:      []Row{},
		RowCount:      0,
		ExecutionTime: elapsed,
		ErrorMessage:  msg,
		ErrorKind:     kind,
		Metadata:      map[string]any{"error_kind": kind.String()},
	}
}

// ExecutionMetrics tracks one in-flight execution. It is owned by a single
// goroutine; Finish sets EndTime exactly once.
type ExecutionMetrics struct {
	ID          string
	EndpointURL string
	StartTime   time.Time
	EndTime     time.Time
	NetworkTime time.Duration
	ParseTime   time.Duration
	ResultCount int
	RetryCount  int

	once sync.Once
}

// StartMetrics begins tracking an execution against endpointURL.
func StartMetrics(endpointURL string) *ExecutionMetrics {
	return &ExecutionMetrics{
		ID:          uuid.NewString(),
		EndpointURL: endpointURL,
		StartTime:   time.Now(),
	}
}

// Finish records the end time. Later calls are no-ops and report false.
func (m *ExecutionMetrics) Finish() bool {
	finished := false
	m.once.Do(func() {
		m.EndTime = time.Now()
		finished = true
	})
	return finished
}

// Elapsed returns EndTime-StartTime once finished, or the running time.
func (m *ExecutionMetrics) Elapsed() time.Duration {
	if m.EndTime.IsZero() {
		return time.Since(m.StartTime)
	}
	return m.EndTime.Sub(m.StartTime)
}

// Fold finishes the metrics and copies them into r.Metadata, returning the
// updated result.
func (m *ExecutionMetrics) Fold(r QueryResult) QueryResult {
	m.Finish()

	meta := make(map[string]any, len(r.Metadata)+8)
	for k, v := range r.Metadata {
		meta[k] = v
	}
	meta["execution_id"] = m.ID
	meta["endpoint"] = m.EndpointURL
	meta["start_time"] = m.StartTime
	meta["end_time"] = m.EndTime
	meta["network_time_ms"] = float64(m.NetworkTime.Microseconds()) / 1000
	meta["parse_time_ms"] = float64(m.ParseTime.Microseconds()) / 1000
	meta["result_count"] = m.ResultCount
	meta["retry_count"] = m.RetryCount

	r.Metadata = meta
	r.ExecutionTime = m.Elapsed()
	return r
}
