package auth

import "net/http"

// Transport is an http.RoundTripper that attaches Credentials to every
// request.
//
// Usage:
//
//	client := &http.Client{Transport: &auth.Transport{Credentials: creds}}
type Transport struct {
	Base        http.RoundTripper
	Credentials *Credentials
}

// RoundTrip implements http.RoundTripper. The caller's request is cloned
// before headers are set.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	if t.Credentials.Empty() {
		return base.RoundTrip(req)
	}

	clone := req.Clone(req.Context())
	if err := t.Credentials.Apply(req.Context(), clone); err != nil {
		if req.Body != nil {
			_ = req.Body.Close()
		}
		return nil, err
	}
	return base.RoundTrip(clone)
}
