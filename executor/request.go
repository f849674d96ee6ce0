package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jonwraymond/sparqlops/sparql"
)

// errorBodyLimit bounds how much of a non-2xx body is read for the fault
// message.
const errorBodyLimit = 8 << 10

// response is a 2xx answer whose body has not been consumed yet.
type response struct {
	body        io.ReadCloser
	format      sparql.ResultFormat
	contentType string
	sent        time.Time
}

// exchange sends the query and returns the open body of a 2xx answer.
// Non-2xx answers become faults carrying the HTTP status.
func (e *Executor) exchange(ctx context.Context, m *sparql.ExecutionMetrics, query string, endpoint sparql.EndpointInfo, format sparql.ResultFormat, opts Options) (*response, error) {
	client, err := e.pool.GetClient(endpoint.URL, format)
	if err != nil {
		return nil, sparql.NewFault(sparql.KindConnection, "", err)
	}

	req, err := e.newRequest(ctx, query, endpoint.URL, format, opts.Stream)
	if err != nil {
		return nil, sparql.NewFault(sparql.KindSyntax, "build request", err)
	}
	for k, v := range e.config.Headers {
		req.Header.Set(k, v)
	}
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}

	if endpoint.AuthRequired {
		if err := opts.Credentials.Require(endpoint.URL); err != nil {
			return nil, sparql.NewFault(sparql.KindAuthentication, "", err)
		}
	}
	if err := opts.Credentials.Apply(ctx, req); err != nil {
		return nil, sparql.NewFault(sparql.KindAuthentication, "apply credentials", err)
	}

	sent := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		m.NetworkTime = time.Since(sent)
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		m.NetworkTime = time.Since(sent)
		return nil, sparql.FaultFromResponse(resp.StatusCode, string(msg))
	}

	if opts.Stream {
		m.NetworkTime = time.Since(sent)
	}
	ct := resp.Header.Get("Content-Type")
	return &response{
		body:        resp.Body,
		format:      responseFormat(ct, format),
		contentType: ct,
		sent:        sent,
	}, nil
}

// newRequest builds a SPARQL protocol request: GET with a query parameter
// when it fits in MaxGETLength, else a POST form. Streaming always POSTs.
func (e *Executor) newRequest(ctx context.Context, query, endpointURL string, format sparql.ResultFormat, stream bool) (*http.Request, error) {
	u, err := url.Parse(endpointURL)
	if err != nil {
		return nil, err
	}

	params := u.Query()
	params.Set("query", query)
	encoded := params.Encode()

	var req *http.Request
	if !stream && len(endpointURL)+len(encoded)+1 <= e.config.MaxGETLength {
		u.RawQuery = encoded
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	} else {
		form := url.Values{"query": {query}}
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, endpointURL, strings.NewReader(form.Encode()))
		if err == nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	}
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", format.Accept())
	return req, nil
}

// responseFormat trusts a recognised Content-Type over the requested
// format; endpoints sometimes answer XML when asked for JSON.
func responseFormat(contentType string, requested sparql.ResultFormat) sparql.ResultFormat {
	if contentType == "" {
		return requested
	}
	media, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return requested
	}
	switch media {
	case "application/json":
		return sparql.FormatJSON
	case "application/xml", "text/xml":
		return sparql.FormatXML
	}
	if f, err := sparql.ParseFormat(media); err == nil {
		return f
	}
	return requested
}

// cappedReader fails with ErrResponseTooLarge once more than n bytes
// have been read.
type cappedReader struct {
	r io.Reader
	n int64
}

func (c *cappedReader) Read(p []byte) (int, error) {
	if c.n < 0 {
		return 0, ErrResponseTooLarge
	}
	if int64(len(p)) > c.n+1 {
		p = p[:c.n+1]
	}
	n, err := c.r.Read(p)
	c.n -= int64(n)
	if c.n < 0 {
		return n, ErrResponseTooLarge
	}
	return n, err
}

func readCapped(r io.Reader, limit int64) ([]byte, error) {
	return io.ReadAll(&cappedReader{r: r, n: limit})
}

// decode parses a fully read body. Graph formats that have no tabular
// decoder are returned undecoded in Metadata["raw_payload"].
func (e *Executor) decode(m *sparql.ExecutionMetrics, resp *response, body []byte) sparql.QueryResult {
	start := time.Now()
	results, err := sparql.Parse(resp.format, bytes.NewReader(body))
	m.ParseTime = time.Since(start)

	if errors.Is(err, sparql.ErrUnsupportedFormat) {
		r := sparql.NewSuccess(nil, nil, m.Elapsed())
		r.Metadata["raw_payload"] = string(body)
		r.Metadata["content_type"] = resp.contentType
		r.Metadata["format"] = string(resp.format)
		return r
	}
	if err != nil {
		return sparql.NewFailure(err, m.Elapsed())
	}
	return success(results, resp)
}

func (e *Executor) decodeStream(ctx context.Context, m *sparql.ExecutionMetrics, resp *response, timeout time.Duration, endpoint sparql.EndpointInfo) sparql.QueryResult {
	start := time.Now()
	stream, err := sparql.NewStream(resp.format, readCloser{
		Reader: &cappedReader{r: resp.body, n: e.config.MaxResponseBytes},
		Closer: resp.body,
	})
	var results *sparql.Results
	if err == nil {
		results, err = stream.Collect()
		_ = stream.Close()
	}
	m.ParseTime = time.Since(start)

	if err != nil {
		if ctx.Err() == nil && !errors.Is(err, ErrResponseTooLarge) {
			return sparql.NewFailure(err, m.Elapsed())
		}
		return sparql.NewFailure(e.fault(ctx, err, timeout, endpoint), m.Elapsed())
	}
	r := success(results, resp)
	r.Metadata["streamed"] = true
	return r
}

func success(results *sparql.Results, resp *response) sparql.QueryResult {
	r := sparql.NewSuccess(results.Variables, results.Rows, 0)
	r.Metadata["format"] = string(resp.format)
	if results.Boolean != nil {
		r.Metadata["boolean"] = *results.Boolean
	}
	return r
}

type readCloser struct {
	io.Reader
	io.Closer
}

// cancelOnClose releases the query deadline when the caller closes the
// stream.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}

// Stream opens query on endpoint and returns a row iterator over the
// response. The caller must Close it. Unlike Execute, Stream returns
// faults as errors; they are *sparql.Fault values where classifiable.
func (e *Executor) Stream(ctx context.Context, query string, endpoint sparql.EndpointInfo, opts Options) (*sparql.Stream, error) {
	opts.Stream = true
	format := opts.Format
	if format == "" {
		format = e.config.DefaultFormat
	}
	if err := validate(query, endpoint, format); err != nil {
		return nil, err
	}

	timeout := e.Timeout(endpoint, opts)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	m := sparql.StartMetrics(endpoint.URL)

	var resp *response
	err := e.admit(ctx, endpoint)
	if err == nil {
		err = e.guard.Do(ctx, endpoint.URL, func(ctx context.Context) error {
			var rerr error
			resp, rerr = e.exchange(ctx, m, query, endpoint, format, opts)
			return rerr
		})
	}
	if err != nil {
		err = e.fault(ctx, err, timeout, endpoint)
		cancel()
		return nil, err
	}

	stream, err := sparql.NewStream(resp.format, cancelOnClose{
		ReadCloser: readCloser{
			Reader: &cappedReader{r: resp.body, n: e.config.MaxResponseBytes},
			Closer: resp.body,
		},
		cancel: cancel,
	})
	if err != nil {
		return nil, fmt.Errorf("open stream from %s: %w", endpoint.DisplayName(), err)
	}
	return stream, nil
}
