package jwtx

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Default token lifetimes. Short access tokens bound the damage of a leaked
// bearer token; the refresh lifetime matches the session-store TTL so the two
// expire together.
const (
	DefaultAccessTokenTTL  = 15 * time.Minute
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
)

// Token type values carried in the "typ" custom claim so an access token can
// never be replayed against the refresh endpoint and vice versa.
const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

var (
	ErrIssuer      = errors.New("jwtx: issuer mismatch")
	ErrExpired     = errors.New("jwtx: token expired")
	ErrNotYetValid = errors.New("jwtx: token not yet valid")
	ErrTokenType   = errors.New("jwtx: wrong token type")
)

// Claims are the signed claims carried by both token kinds. Additive changes
// only, to keep older tokens parseable during a deploy.
type Claims struct {
	jwt.RegisteredClaims

	// TokenType distinguishes access from refresh tokens.
	TokenType string `json:"typ,omitempty"`

	// Role is the caller's platform role ("user", "creator", "admin").
	// Only present on access tokens.
	Role string `json:"role,omitempty"`

	// DeviceID scopes the session: one live refresh token per (user, device).
	DeviceID string `json:"did,omitempty"`
}

// NewAccessClaims builds the claim set for a short-lived access token.
func NewAccessClaims(subject, role, deviceID, issuer string, ttl time.Duration, now time.Time) Claims {
	return newClaims(subject, issuer, ttl, now, Claims{
		TokenType: TypeAccess,
		Role:      role,
		DeviceID:  deviceID,
	})
}

// NewRefreshClaims builds the claim set for a long-lived refresh token.
func NewRefreshClaims(subject, deviceID, issuer string, ttl time.Duration, now time.Time) Claims {
	return newClaims(subject, issuer, ttl, now, Claims{
		TokenType: TypeRefresh,
		DeviceID:  deviceID,
	})
}

func newClaims(subject, issuer string, ttl time.Duration, now time.Time, c Claims) Claims {
	c.RegisteredClaims = jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		ID:        NewJTI(),
	}
	return c
}

// NewJTI returns a URL-safe random identifier for the "jti" claim.
func NewJTI() string {
	var b [20]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}

// ValidateIssuer checks the issuer claim against the expected value.
// An empty expectation enforces nothing.
func (c *Claims) ValidateIssuer(expected string) error {
	if expected != "" && c.Issuer != expected {
		return ErrIssuer
	}
	return nil
}

// ValidateExpiry ensures the token is inside its [nbf, exp] window.
func (c *Claims) ValidateExpiry() error {
	now := time.Now().UTC()
	if c.ExpiresAt != nil && now.After(c.ExpiresAt.Time) {
		return ErrExpired
	}
	if c.NotBefore != nil && now.Before(c.NotBefore.Time) {
		return ErrNotYetValid
	}
	return nil
}

// ValidateType checks the "typ" claim.
func (c *Claims) ValidateType(expected string) error {
	if c.TokenType != expected {
		return ErrTokenType
	}
	return nil
}
