package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenSignerConfig configures a TokenSigner.
type TokenSignerConfig struct {
	// Issuer is the iss claim.
	Issuer string

	// Subject is the sub claim.
	Subject string

	// Audience is the aud claim, usually the endpoint URL.
	Audience string

	// KeyID is placed in the kid header and passed to the KeyProvider.
	KeyID string

	// Method is the signing algorithm.
	// Default: HS256
	Method jwt.SigningMethod

	// TTL is the lifetime of each minted token.
	// Default: 5m
	TTL time.Duration

	// Claims are extra claims copied into every token.
	Claims map[string]any
}

// KeyProvider retrieves signing keys.
type KeyProvider interface {
	// GetKey returns the key for the given key ID.
	GetKey(ctx context.Context, keyID string) (any, error)
}

// StaticKeyProvider provides a static signing key.
type StaticKeyProvider struct {
	key any
}

// NewStaticKeyProvider creates a static key provider. key is a []byte for
// HMAC methods or a crypto.Signer for RSA/ECDSA.
func NewStaticKeyProvider(key any) *StaticKeyProvider {
	return &StaticKeyProvider{key: key}
}

// GetKey returns the static key.
func (p *StaticKeyProvider) GetKey(_ context.Context, _ string) (any, error) {
	if p.key == nil {
		return nil, ErrKeyNotFound
	}
	if b, ok := p.key.([]byte); ok && len(b) == 0 {
		return nil, ErrKeyNotFound
	}
	return p.key, nil
}

// refreshMargin is how long before expiry a cached token is replaced.
const refreshMargin = 30 * time.Second

// TokenSigner mints short-lived bearer tokens for endpoints that accept
// JWTs. Tokens are cached and reused until shortly before they expire.
type TokenSigner struct {
	config TokenSignerConfig
	keys   KeyProvider
	now    func() time.Time

	mu      sync.Mutex
	token   string
	expires time.Time
}

// NewTokenSigner creates a signer.
func NewTokenSigner(config TokenSignerConfig, keys KeyProvider) *TokenSigner {
	if config.Method == nil {
		config.Method = jwt.SigningMethodHS256
	}
	if config.TTL <= 0 {
		config.TTL = 5 * time.Minute
	}

	return &TokenSigner{
		config: config,
		keys:   keys,
		now:    time.Now,
	}
}

// identity names the claims and key the signer mints tokens with.
func (s *TokenSigner) identity() string {
	alg := ""
	if s.config.Method != nil {
		alg = s.config.Method.Alg()
	}
	return s.config.Issuer + "\x00" + s.config.Subject + "\x00" + s.config.Audience + "\x00" + s.config.KeyID + "\x00" + alg
}

// Token returns a valid signed token, minting a new one when the cached
// token is missing or about to expire.
func (s *TokenSigner) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	margin := refreshMargin
	if margin > s.config.TTL/2 {
		margin = s.config.TTL / 2
	}
	if s.token != "" && now.Add(margin).Before(s.expires) {
		return s.token, nil
	}

	key, err := s.keys.GetKey(ctx, s.config.KeyID)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrSigningFailed, err)
	}

	expires := now.Add(s.config.TTL)
	claims := jwt.MapClaims{}
	for k, v := range s.config.Claims {
		claims[k] = v
	}
	claims["iat"] = now.Unix()
	claims["exp"] = expires.Unix()
	if s.config.Issuer != "" {
		claims["iss"] = s.config.Issuer
	}
	if s.config.Subject != "" {
		claims["sub"] = s.config.Subject
	}
	if s.config.Audience != "" {
		claims["aud"] = s.config.Audience
	}

	token := jwt.NewWithClaims(s.config.Method, claims)
	if s.config.KeyID != "" {
		token.Header["kid"] = s.config.KeyID
	}

	signed, err := token.SignedString(key)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrSigningFailed, err)
	}

	s.token = signed
	s.expires = expires
	return signed, nil
}

// Ensure StaticKeyProvider implements KeyProvider
var _ KeyProvider = (*StaticKeyProvider)(nil)
