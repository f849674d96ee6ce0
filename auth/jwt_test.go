package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func parseHS256(t *testing.T, token string, key []byte) jwt.MapClaims {
	t.Helper()
	parsed, err := jwt.Parse(token, func(*jwt.Token) (any, error) { return key, nil },
		jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		t.Fatalf("claims type = %T", parsed.Claims)
	}
	return claims
}

func TestTokenSigner_Claims(t *testing.T) {
	key := []byte("secret")
	signer := NewTokenSigner(TokenSignerConfig{
		Issuer:   "sparqlctl",
		Subject:  "svc-account",
		Audience: "https://query.example.org/sparql",
		KeyID:    "k1",
		Claims:   map[string]any{"scope": "read"},
	}, NewStaticKeyProvider(key))

	token, err := signer.Token(context.Background())
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}

	claims := parseHS256(t, token, key)
	if claims["iss"] != "sparqlctl" {
		t.Errorf("iss = %v", claims["iss"])
	}
	if claims["sub"] != "svc-account" {
		t.Errorf("sub = %v", claims["sub"])
	}
	if claims["aud"] != "https://query.example.org/sparql" {
		t.Errorf("aud = %v", claims["aud"])
	}
	if claims["scope"] != "read" {
		t.Errorf("scope = %v", claims["scope"])
	}
}

func TestTokenSigner_CachesUntilNearExpiry(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	signer := NewTokenSigner(TokenSignerConfig{TTL: time.Minute}, NewStaticKeyProvider([]byte("secret")))
	signer.now = func() time.Time { return now }

	first, err := signer.Token(context.Background())
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}

	now = now.Add(10 * time.Second)
	second, _ := signer.Token(context.Background())
	if second != first {
		t.Error("token should be reused while fresh")
	}

	now = now.Add(40 * time.Second)
	third, _ := signer.Token(context.Background())
	if third == first {
		t.Error("token should be re-minted near expiry")
	}
}

func TestTokenSigner_MissingKey(t *testing.T) {
	signer := NewTokenSigner(TokenSignerConfig{}, NewStaticKeyProvider(nil))

	_, err := signer.Token(context.Background())
	if !errors.Is(err, ErrSigningFailed) {
		t.Errorf("error = %v, want ErrSigningFailed", err)
	}
	if !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("error = %v, want ErrKeyNotFound", err)
	}
}

func TestTokenSigner_WrongKeyType(t *testing.T) {
	signer := NewTokenSigner(TokenSignerConfig{}, NewStaticKeyProvider("not-bytes"))

	if _, err := signer.Token(context.Background()); !errors.Is(err, ErrSigningFailed) {
		t.Errorf("error = %v, want ErrSigningFailed", err)
	}
}
