package httpmw

import (
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// APIKeyHeader is the header the API key guard reads.
const APIKeyHeader = "X-API-Key"

// Guard authorizes revalidation requests. Implementations return
// ErrUnauthorized (possibly wrapped) when the request must be rejected.
type Guard interface {
	Authorize(r *http.Request) error
}

// APIKeyGuard authorizes requests carrying one of a fixed set of API keys.
// Keys are stored as SHA-256 digests and compared in constant time.
type APIKeyGuard struct {
	hashes [][sha256.Size]byte
}

var _ Guard = (*APIKeyGuard)(nil)

// NewAPIKeyGuard creates a guard accepting any of the given keys.
func NewAPIKeyGuard(keys ...string) (*APIKeyGuard, error) {
	if len(keys) == 0 {
		return nil, ErrNoKeys
	}
	g := &APIKeyGuard{hashes: make([][sha256.Size]byte, 0, len(keys))}
	for _, key := range keys {
		g.hashes = append(g.hashes, sha256.Sum256([]byte(key)))
	}
	return g, nil
}

// Authorize checks the X-API-Key header against the configured keys.
func (g *APIKeyGuard) Authorize(r *http.Request) error {
	key := strings.TrimSpace(r.Header.Get(APIKeyHeader))
	if key == "" {
		return fmt.Errorf("%w: missing %s header", ErrUnauthorized, APIKeyHeader)
	}
	presented := sha256.Sum256([]byte(key))
	for i := range g.hashes {
		if subtle.ConstantTimeCompare(g.hashes[i][:], presented[:]) == 1 {
			return nil
		}
	}
	return fmt.Errorf("%w: unknown API key", ErrUnauthorized)
}

// JWTGuard authorizes requests carrying an HMAC-signed bearer token.
type JWTGuard struct {
	secret []byte
	issuer string
}

var _ Guard = (*JWTGuard)(nil)

// NewJWTGuard creates a guard validating Authorization bearer tokens signed
// with secret. When issuer is non-empty the token's iss claim must match.
func NewJWTGuard(secret []byte, issuer string) (*JWTGuard, error) {
	if len(secret) == 0 {
		return nil, ErrNoSecret
	}
	return &JWTGuard{secret: secret, issuer: issuer}, nil
}

// Authorize parses and validates the bearer token.
func (g *JWTGuard) Authorize(r *http.Request) error {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return fmt.Errorf("%w: missing bearer token", ErrUnauthorized)
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"})}
	if g.issuer != "" {
		opts = append(opts, jwt.WithIssuer(g.issuer))
	}
	_, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		return g.secret, nil
	}, opts...)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	return nil
}

// AllowAll is a Guard that authorizes every request. For local development
// and tests only.
type AllowAll struct{}

var _ Guard = AllowAll{}

// Authorize always succeeds.
func (AllowAll) Authorize(*http.Request) error { return nil }
