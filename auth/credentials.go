package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
)

// Method identifies how credentials are presented.
type Method string

const (
	MethodNone   Method = "none"
	MethodBasic  Method = "basic"
	MethodBearer Method = "bearer"
	MethodJWT    Method = "jwt"
)

// Credentials are attached to requests sent to an endpoint. At most one
// method is used, in order of preference: Signer, BearerToken, Basic.
type Credentials struct {
	Username    string `json:"username,omitempty" mapstructure:"username"`
	Password    string `json:"-" mapstructure:"password"`
	BearerToken string `json:"-" mapstructure:"bearer_token"`

	// Signer mints a fresh bearer token per request.
	Signer *TokenSigner `json:"-" mapstructure:"-"`
}

// Method returns the method these credentials use.
func (c *Credentials) Method() Method {
	switch {
	case c == nil:
		return MethodNone
	case c.Signer != nil:
		return MethodJWT
	case c.BearerToken != "":
		return MethodBearer
	case c.Username != "":
		return MethodBasic
	default:
		return MethodNone
	}
}

// Empty reports whether no method is configured.
func (c *Credentials) Empty() bool {
	return c.Method() == MethodNone
}

// Apply sets the Authorization header on req. Nil or empty credentials
// leave req untouched.
func (c *Credentials) Apply(ctx context.Context, req *http.Request) error {
	switch c.Method() {
	case MethodJWT:
		token, err := c.Signer.Token(ctx)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	case MethodBearer:
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case MethodBasic:
		req.SetBasicAuth(c.Username, c.Password)
	}
	return nil
}

// Require returns ErrMissingCredentials when c is empty.
func (c *Credentials) Require(endpoint string) error {
	if c.Empty() {
		return fmt.Errorf("%w for %s", ErrMissingCredentials, endpoint)
	}
	return nil
}

// String never prints secrets.
func (c *Credentials) String() string {
	if c.Method() == MethodBasic {
		return "basic(" + c.Username + ")"
	}
	return string(c.Method())
}

// Principal returns a stable digest of the identity the credentials act as.
// Different tokens or passwords yield different principals. Empty
// credentials yield "".
func (c *Credentials) Principal() string {
	var material string
	switch c.Method() {
	case MethodJWT:
		material = "jwt\x00" + c.Signer.identity()
	case MethodBearer:
		material = "bearer\x00" + c.BearerToken
	case MethodBasic:
		material = "basic\x00" + c.Username + "\x00" + c.Password
	default:
		return ""
	}
	sum := sha256.Sum256([]byte(material))
	return hex.EncodeToString(sum[:])
}
