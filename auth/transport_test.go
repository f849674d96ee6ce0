package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCredentials_Method(t *testing.T) {
	signer := NewTokenSigner(TokenSignerConfig{}, NewStaticKeyProvider([]byte("k")))

	tests := []struct {
		name  string
		creds *Credentials
		want  Method
	}{
		{"nil", nil, MethodNone},
		{"empty", &Credentials{}, MethodNone},
		{"basic", &Credentials{Username: "u", Password: "p"}, MethodBasic},
		{"bearer", &Credentials{BearerToken: "t"}, MethodBearer},
		{"signer wins", &Credentials{Username: "u", BearerToken: "t", Signer: signer}, MethodJWT},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.creds.Method(); got != tt.want {
				t.Errorf("Method() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCredentials_Apply(t *testing.T) {
	ctx := context.Background()

	req := httptest.NewRequest(http.MethodGet, "http://example.org/sparql", nil)
	if err := (&Credentials{Username: "alice", Password: "pw"}).Apply(ctx, req); err != nil {
		t.Fatal(err)
	}
	if u, p, ok := req.BasicAuth(); !ok || u != "alice" || p != "pw" {
		t.Errorf("BasicAuth() = %q, %q, %v", u, p, ok)
	}

	req = httptest.NewRequest(http.MethodGet, "http://example.org/sparql", nil)
	if err := (&Credentials{BearerToken: "abc"}).Apply(ctx, req); err != nil {
		t.Fatal(err)
	}
	if got := req.Header.Get("Authorization"); got != "Bearer abc" {
		t.Errorf("Authorization = %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "http://example.org/sparql", nil)
	var none *Credentials
	if err := none.Apply(ctx, req); err != nil {
		t.Fatal(err)
	}
	if got := req.Header.Get("Authorization"); got != "" {
		t.Errorf("Authorization = %q, want empty", got)
	}
}

func TestCredentials_RequireAndString(t *testing.T) {
	var none *Credentials
	if err := none.Require("http://x"); !errors.Is(err, ErrMissingCredentials) {
		t.Errorf("Require() = %v", err)
	}

	c := &Credentials{Username: "bob", Password: "hunter2"}
	if err := c.Require("http://x"); err != nil {
		t.Errorf("Require() = %v", err)
	}
	if strings.Contains(c.String(), "hunter2") {
		t.Error("String() leaked the password")
	}
}

func TestCredentials_Principal(t *testing.T) {
	var none *Credentials
	if got := none.Principal(); got != "" {
		t.Errorf("nil Principal() = %q, want empty", got)
	}

	alice := &Credentials{BearerToken: "alice"}
	mallory := &Credentials{BearerToken: "mallory"}
	if alice.Principal() == mallory.Principal() {
		t.Error("different bearer tokens share a principal")
	}
	if alice.Principal() != (&Credentials{BearerToken: "alice"}).Principal() {
		t.Error("same bearer token yields different principals")
	}
	if strings.Contains(alice.Principal(), "alice") {
		t.Error("Principal() leaked the token")
	}

	bob := &Credentials{Username: "bob", Password: "a"}
	bob2 := &Credentials{Username: "bob", Password: "b"}
	if bob.Principal() == bob2.Principal() {
		t.Error("different passwords share a principal")
	}

	keys := NewStaticKeyProvider([]byte("k"))
	s1 := &Credentials{Signer: NewTokenSigner(TokenSignerConfig{Subject: "svc-a"}, keys)}
	s2 := &Credentials{Signer: NewTokenSigner(TokenSignerConfig{Subject: "svc-b"}, keys)}
	if s1.Principal() == s2.Principal() {
		t.Error("signers with different subjects share a principal")
	}
}

func TestTransport(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := &http.Client{Transport: &Transport{Credentials: &Credentials{BearerToken: "tok"}}}
	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	resp.Body.Close()

	if gotAuth != "Bearer tok" {
		t.Errorf("server saw Authorization = %q", gotAuth)
	}
	if req.Header.Get("Authorization") != "" {
		t.Error("caller's request was mutated")
	}
}

func TestTransport_SignerFailure(t *testing.T) {
	creds := &Credentials{Signer: NewTokenSigner(TokenSignerConfig{}, NewStaticKeyProvider(nil))}
	client := &http.Client{Transport: &Transport{Credentials: creds}}

	_, err := client.Get("http://127.0.0.1:1/never-dialed")
	if !errors.Is(err, ErrSigningFailed) {
		t.Errorf("error = %v, want ErrSigningFailed", err)
	}
}
