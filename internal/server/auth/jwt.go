// Package auth signs and verifies the short-lived access tokens (HS256 JWTs)
// and carries the authenticated Principal through request contexts.
package auth

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/hkdf"
)

const (
	keySize = 32
	keyInfo = "credkeeper access-token signing key v1"

	// RolesClaim carries the user's role names.
	RolesClaim = "roles"
)

var signingMethod = jwt.SigningMethodHS256

// reserved claims are always set by the Issuer and cannot be supplied by callers.
var reserved = map[string]struct{}{"sub": {}, "iat": {}, "exp": {}, "nbf": {}}

// Claims is the verified content of an access token.
type Claims struct {
	Subject   string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Extra     map[string]any
}

// Issuer signs and verifies access tokens with a single symmetric key.
// It holds no mutable state and is safe for concurrent use.
type Issuer struct {
	key       []byte
	accessTTL time.Duration
}

// DeriveKey stretches secret into a 256-bit HMAC key with HKDF-SHA256.
func DeriveKey(secret []byte) ([]byte, error) {
	if len(secret) == 0 {
		return nil, errors.New("empty signing secret")
	}
	key := make([]byte, keySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(keyInfo)), key); err != nil {
		return nil, err
	}
	return key, nil
}

// NewIssuer derives the signing key once from secret.
func NewIssuer(secret []byte, accessTTL time.Duration) (*Issuer, error) {
	if accessTTL <= 0 {
		return nil, fmt.Errorf("access token ttl must be positive, got %s", accessTTL)
	}
	key, err := DeriveKey(secret)
	if err != nil {
		return nil, err
	}
	return &Issuer{key: key, accessTTL: accessTTL}, nil
}

// AccessTTL is the lifetime of tokens produced by Sign.
func (i *Issuer) AccessTTL() time.Duration {
	return i.accessTTL
}

// Sign produces a compact HS256 token for subject, issued at now and
// expiring at now+AccessTTL. Caller claims are copied in; reserved names
// are ignored.
func (i *Issuer) Sign(subject string, claims map[string]any, now time.Time) (string, error) {
	mc := jwt.MapClaims{}
	for k, v := range claims {
		if _, ok := reserved[k]; ok {
			continue
		}
		mc[k] = v
	}
	mc["sub"] = subject
	mc["iat"] = jwt.NewNumericDate(now)
	mc["exp"] = jwt.NewNumericDate(now.Add(i.accessTTL))

	return jwt.NewWithClaims(signingMethod, mc).SignedString(i.key)
}

// Parse checks format, algorithm, signature and expiry together and returns
// the claims. Every failure matches common.ErrTokenInvalid; expired tokens
// also match common.ErrTokenExpired.
func (i *Issuer) Parse(tokenString string, now time.Time) (*Claims, error) {
	mc := jwt.MapClaims{}

	token, err := jwt.ParseWithClaims(tokenString, mc, func(t *jwt.Token) (any, error) {
		return i.key, nil
	},
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %w", common.ErrTokenInvalid, common.ErrTokenExpired)
		}
		return nil, fmt.Errorf("%w: %v", common.ErrTokenInvalid, err)
	}
	if !token.Valid {
		return nil, common.ErrTokenInvalid
	}

	sub, err := mc.GetSubject()
	if err != nil || sub == "" {
		return nil, fmt.Errorf("%w: missing subject", common.ErrTokenInvalid)
	}
	exp, err := mc.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, fmt.Errorf("%w: missing expiry", common.ErrTokenInvalid)
	}

	claims := &Claims{Subject: sub, ExpiresAt: exp.Time, Extra: map[string]any{}}
	if iat, err := mc.GetIssuedAt(); err == nil && iat != nil {
		claims.IssuedAt = iat.Time
	}
	for k, v := range mc {
		if _, ok := reserved[k]; !ok {
			claims.Extra[k] = v
		}
	}
	return claims, nil
}

// Verify reports whether tokenString is well formed, correctly signed and
// not expired at now. It never panics.
func (i *Issuer) Verify(tokenString string, now time.Time) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	_, err := i.Parse(tokenString, now)
	return err == nil
}

// SubjectOf returns the verified subject.
func (i *Issuer) SubjectOf(tokenString string, now time.Time) (string, error) {
	c, err := i.Parse(tokenString, now)
	if err != nil {
		return "", err
	}
	return c.Subject, nil
}

// ExpiryOf returns the verified expiry instant.
func (i *Issuer) ExpiryOf(tokenString string, now time.Time) (time.Time, error) {
	c, err := i.Parse(tokenString, now)
	if err != nil {
		return time.Time{}, err
	}
	return c.ExpiresAt, nil
}

// Roles extracts the roles claim, tolerating the []any shape JSON decoding produces.
func (c *Claims) Roles() []string {
	raw, ok := c.Extra[RolesClaim]
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case []string:
		return v
	case []any:
		roles := make([]string, 0, len(v))
		for _, r := range v {
			if s, ok := r.(string); ok {
				roles = append(roles, s)
			}
		}
		return roles
	default:
		return nil
	}
}
