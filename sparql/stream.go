package sparql

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
)

// Stream is a lazy, forward-only, single-pass iterator over the rows of a
// JSON results body that is still being received. It is finite and cannot
// be rewound; re-reading requires issuing the query again.
//
// A Stream is not safe for concurrent use.
type Stream struct {
	body io.ReadCloser
	dec  *json.Decoder

	vars       []string
	inBindings bool
	boolean    *bool
	askServed  bool
	count      int

	closeOnce sync.Once
	closed    bool
	closeErr  error
}

// NewStream starts iterating body. Only FormatJSON is streamable; any other
// format fails immediately with ErrUnsupportedFormat and closes body.
func NewStream(f ResultFormat, body io.ReadCloser) (*Stream, error) {
	if f != FormatJSON && f != "" {
		_ = body.Close()
		return nil, fmt.Errorf("%w for streaming: %s", ErrUnsupportedFormat, f)
	}

	s := &Stream{body: body, dec: json.NewDecoder(body)}
	if err := s.open(); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// Variables returns the variables from the head section seen so far.
func (s *Stream) Variables() []string {
	return s.vars
}

// Count returns how many rows Next has produced.
func (s *Stream) Count() int {
	return s.count
}

// Next returns the next row, or io.EOF once the payload is exhausted.
func (s *Stream) Next() (Row, error) {
	if s.closed {
		return nil, ErrStreamClosed
	}

	if s.inBindings {
		if s.dec.More() {
			var raw map[string]jsonTerm
			if err := s.dec.Decode(&raw); err != nil {
				return nil, malformed("json", err)
			}
			s.count++
			return jsonRow(raw), nil
		}
		if _, err := s.dec.Token(); err != nil { // ]
			return nil, malformed("json", err)
		}
		s.inBindings = false
		if err := s.scanResultsTail(); err != nil {
			return nil, err
		}
	}

	if s.boolean != nil && !s.askServed {
		s.askServed = true
		s.count++
		return askRow(*s.boolean), nil
	}

	return nil, io.EOF
}

// Close releases the underlying body. It is safe to call more than once.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		s.closed = true
		s.closeErr = s.body.Close()
	})
	return s.closeErr
}

// open consumes tokens up to the first binding (or the end of the
// document for ASK answers and empty results).
func (s *Stream) open() error {
	if err := s.expectDelim('{'); err != nil {
		return err
	}
	return s.scanObject(false)
}

// scanObject walks keys of the top-level object (or, when inResults is
// set, of the "results" object) until it reaches the bindings array or the
// end of the document.
func (s *Stream) scanObject(inResults bool) error {
	for s.dec.More() {
		tok, err := s.dec.Token()
		if err != nil {
			return malformed("json", err)
		}
		key, ok := tok.(string)
		if !ok {
			return malformed("json", fmt.Errorf("unexpected token %v", tok))
		}

		switch {
		case inResults && key == "bindings":
			if err := s.expectDelim('['); err != nil {
				return err
			}
			s.inBindings = true
			return nil

		case !inResults && key == "head":
			var head jsonHead
			if err := s.dec.Decode(&head); err != nil {
				return malformed("json", err)
			}
			s.vars = head.Vars

		case !inResults && key == "boolean":
			var b bool
			if err := s.dec.Decode(&b); err != nil {
				return malformed("json", err)
			}
			s.boolean = &b
			s.vars = []string{AskVariable}

		case !inResults && key == "results":
			if err := s.expectDelim('{'); err != nil {
				return err
			}
			if err := s.scanObject(true); err != nil {
				return err
			}
			if s.inBindings {
				return nil
			}

		default:
			var skip json.RawMessage
			if err := s.dec.Decode(&skip); err != nil {
				return malformed("json", err)
			}
		}
	}

	// closing brace of the current object
	if _, err := s.dec.Token(); err != nil && !errors.Is(err, io.EOF) {
		return malformed("json", err)
	}
	return nil
}

// scanResultsTail finishes the "results" object and the top-level object
// after the bindings array has been consumed.
func (s *Stream) scanResultsTail() error {
	if err := s.scanObject(true); err != nil {
		return err
	}
	return s.scanObject(false)
}

func (s *Stream) expectDelim(want json.Delim) error {
	tok, err := s.dec.Token()
	if err != nil {
		return malformed("json", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return malformed("json", fmt.Errorf("expected %q, got %v", want, tok))
	}
	return nil
}

// Collect drains the stream into memory. It is a convenience for callers
// that asked for streaming transport but want a complete result.
func (s *Stream) Collect() (*Results, error) {
	rows := []Row{}
	for {
		row, err := s.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return &Results{Variables: s.Variables(), Rows: rows, Boolean: s.boolean}, nil
}
