// Package token inspects platform access tokens on the client side. Access
// tokens are JWTs signed by the backend; the client holds no verification key,
// so claims are decoded without signature checks and must never be used to
// make authorization decisions locally beyond UX hints (expiry countdowns,
// proactive refresh).
package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

// Claims are the platform claims embedded in an access token.
type Claims struct {
	UserID    string    // sub
	Email     string    // email
	Role      string    // role
	TokenType string    // type: "access" or "refresh"
	IssuedAt  time.Time // iat
	ExpiresAt time.Time // exp
}

type rawClaims struct {
	Email     string `json:"email"`
	Role      string `json:"role"`
	TokenType string `json:"type"`
	jwt.RegisteredClaims
}

// Parse decodes the claims of a JWT without verifying its signature.
func Parse(rawToken string) (*Claims, error) {
	parser := jwt.NewParser()
	var claims rawClaims
	if _, _, err := parser.ParseUnverified(rawToken, &claims); err != nil {
		return nil, errors.Wrap(err, "[Parse] ParseUnverified")
	}

	parsed := &Claims{
		UserID:    claims.Subject,
		Email:     claims.Email,
		Role:      claims.Role,
		TokenType: claims.TokenType,
	}
	if claims.IssuedAt != nil {
		parsed.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		parsed.ExpiresAt = claims.ExpiresAt.Time
	}
	return parsed, nil
}

// Expired reports whether the token's exp claim lies in the past. Tokens
// without an exp claim are treated as unexpired; the backend remains the
// authority either way.
func (c *Claims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt)
}

// ExpiresWithin reports whether the token expires inside the given window.
func (c *Claims) ExpiresWithin(now time.Time, window time.Duration) bool {
	return !c.ExpiresAt.IsZero() && now.Add(window).After(c.ExpiresAt)
}
