package sparql

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"nil", nil, KindUnknown},
		{"plain", errors.New("boom"), KindUnknown},
		{"fault", NewFault(KindRateLimit, "slow down", nil), KindRateLimit},
		{"wrapped fault", fmt.Errorf("query: %w", NewFault(KindSyntax, "bad", nil)), KindSyntax},
		{"deadline", context.DeadlineExceeded, KindTimeout},
		{"net timeout", &url.Error{Op: "Get", URL: "http://x", Err: timeoutErr{}}, KindTimeout},
		{"dial", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, KindConnection},
		{"dns", &net.DNSError{Err: "no such host", Name: "nowhere.invalid"}, KindConnection},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestFaultFromResponse(t *testing.T) {
	tests := map[int]ErrorKind{
		400: KindSyntax,
		401: KindAuthentication,
		403: KindPermission,
		404: KindNotFound,
		408: KindTimeout,
		413: KindTooLarge,
		414: KindTooLarge,
		429: KindRateLimit,
		500: KindUnknown,
		502: KindUnavailable,
		503: KindUnavailable,
		504: KindTimeout,
	}
	for code, want := range tests {
		f := FaultFromResponse(code, "details")
		assert.Equal(t, want, f.Kind, "status %d", code)
		assert.Equal(t, code, f.StatusCode)
		assert.Contains(t, f.Error(), "details")
	}
}

func TestFaultFromResponse_TruncatesBody(t *testing.T) {
	f := FaultFromResponse(500, strings.Repeat("x", 4096))
	assert.Less(t, len(f.Message), 600)
	assert.True(t, strings.HasSuffix(f.Message, "..."))
}

func TestFault_ErrorAndUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	f := NewFault(KindConnection, "send request", cause)

	assert.Equal(t, "sparql: connection: send request: connection reset", f.Error())
	assert.ErrorIs(t, f, cause)

	f = &Fault{Kind: KindRateLimit, StatusCode: 429, Message: "Too Many Requests"}
	assert.Equal(t, "sparql: rate_limit (HTTP 429): Too Many Requests", f.Error())
}
