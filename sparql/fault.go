package sparql

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
)

// ErrorKind is the concrete kind of a fault, known before any message
// pattern matching.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindSyntax
	KindTimeout
	KindAuthentication
	KindPermission
	KindRateLimit
	KindUnavailable
	KindNotFound
	KindConnection
	KindTLS
	KindTooComplex
	KindTooLarge
	KindMalformed
)

var kindNames = map[ErrorKind]string{
	KindUnknown:        "unknown",
	KindSyntax:         "syntax",
	KindTimeout:        "timeout",
	KindAuthentication: "authentication",
	KindPermission:     "permission_denied",
	KindRateLimit:      "rate_limit",
	KindUnavailable:    "endpoint_unavailable",
	KindNotFound:       "resource_not_found",
	KindConnection:     "connection",
	KindTLS:            "tls",
	KindTooComplex:     "query_too_complex",
	KindTooLarge:       "result_too_large",
	KindMalformed:      "malformed_response",
}

// String returns the kind name.
func (k ErrorKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// MarshalText encodes the kind by name.
func (k ErrorKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind name.
func (k *ErrorKind) UnmarshalText(b []byte) error {
	for kind, name := range kindNames {
		if name == string(b) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("sparql: unknown error kind %q", b)
}

// Fault is a failure observed while talking to an endpoint or decoding its
// answer.
type Fault struct {
	Kind       ErrorKind
	Message    string
	StatusCode int // HTTP status, 0 for transport faults
	Err        error
}

// NewFault creates a fault of kind wrapping err.
func NewFault(kind ErrorKind, msg string, err error) *Fault {
	return &Fault{Kind: kind, Message: msg, Err: err}
}

func (f *Fault) Error() string {
	var b strings.Builder
	b.WriteString("sparql: ")
	b.WriteString(f.Kind.String())
	if f.StatusCode != 0 {
		fmt.Fprintf(&b, " (HTTP %d)", f.StatusCode)
	}
	if f.Message != "" {
		b.WriteString(": ")
		b.WriteString(f.Message)
	}
	if f.Err != nil && (f.Message == "" || !strings.Contains(f.Message, f.Err.Error())) {
		b.WriteString(": ")
		b.WriteString(f.Err.Error())
	}
	return b.String()
}

func (f *Fault) Unwrap() error {
	return f.Err
}

// KindOf classifies err by its concrete type. Errors it cannot place are
// KindUnknown; callers wanting message heuristics layer them on top.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}

	var fault *Fault
	if errors.As(err, &fault) {
		return fault.Kind
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}

	if isTLSError(err) {
		return KindTLS
	}

	var opErr *net.OpError
	var dnsErr *net.DNSError
	var urlErr *url.Error
	if errors.As(err, &opErr) || errors.As(err, &dnsErr) || errors.As(err, &urlErr) {
		return KindConnection
	}

	return KindUnknown
}

func isTLSError(err error) bool {
	var (
		unknownAuth  x509.UnknownAuthorityError
		invalidCert  x509.CertificateInvalidError
		hostname     x509.HostnameError
		recordHeader tls.RecordHeaderError
		verification *tls.CertificateVerificationError
		alert        tls.AlertError
	)
	return errors.As(err, &unknownAuth) ||
		errors.As(err, &invalidCert) ||
		errors.As(err, &hostname) ||
		errors.As(err, &recordHeader) ||
		errors.As(err, &verification) ||
		errors.As(err, &alert)
}

// maxBodyExcerpt bounds how much of an error response body ends up in a
// fault message.
const maxBodyExcerpt = 512

// FaultFromResponse maps a non-2xx HTTP answer to a fault. Generic 5xx
// answers stay KindUnknown so message patterns (e.g. an engine reporting a
// transaction timeout) can still classify them.
func FaultFromResponse(statusCode int, body string) *Fault {
	kind := KindUnknown
	switch {
	case statusCode == http.StatusBadRequest:
		kind = KindSyntax
	case statusCode == http.StatusUnauthorized:
		kind = KindAuthentication
	case statusCode == http.StatusForbidden:
		kind = KindPermission
	case statusCode == http.StatusNotFound:
		kind = KindNotFound
	case statusCode == http.StatusRequestTimeout || statusCode == http.StatusGatewayTimeout:
		kind = KindTimeout
	case statusCode == http.StatusRequestEntityTooLarge || statusCode == http.StatusRequestURITooLong:
		kind = KindTooLarge
	case statusCode == http.StatusTooManyRequests:
		kind = KindRateLimit
	case statusCode == http.StatusBadGateway || statusCode == http.StatusServiceUnavailable:
		kind = KindUnavailable
	}

	body = strings.TrimSpace(body)
	if len(body) > maxBodyExcerpt {
		body = body[:maxBodyExcerpt] + "..."
	}
	msg := http.StatusText(statusCode)
	if body != "" {
		msg = msg + ": " + body
	}

	return &Fault{Kind: kind, Message: msg, StatusCode: statusCode}
}
