package jwt

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNotJWT is returned for opaque (non-JWT) bearer tokens.
var ErrNotJWT = errors.New("token is not a jwt")

// Claims is the subset of token claims a client can display.
type Claims struct {
	Subject   string
	Username  string
	Issuer    string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type tokenClaims struct {
	Username string `json:"username,omitempty"`
	jwt.RegisteredClaims
}

var parser = jwt.NewParser()

// Inspect decodes token claims without signature verification.
func Inspect(token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if strings.Count(token, ".") != 2 {
		return nil, ErrNotJWT
	}

	var tc tokenClaims
	if _, _, err := parser.ParseUnverified(token, &tc); err != nil {
		return nil, errors.Join(ErrNotJWT, err)
	}

	c := &Claims{
		Subject:  tc.Subject,
		Username: tc.Username,
		Issuer:   tc.Issuer,
	}
	if tc.IssuedAt != nil {
		c.IssuedAt = tc.IssuedAt.Time
	}
	if tc.ExpiresAt != nil {
		c.ExpiresAt = tc.ExpiresAt.Time
	}
	return c, nil
}

// HasExpiry reports whether the token carries an exp claim.
func (c *Claims) HasExpiry() bool {
	return c != nil && !c.ExpiresAt.IsZero()
}

// Expired reports whether exp is at or before now. Tokens without exp never
// expire locally.
func (c *Claims) Expired(now time.Time) bool {
	if !c.HasExpiry() {
		return false
	}
	return !now.Before(c.ExpiresAt)
}

// Remaining returns the time left until exp, or zero when expired or absent.
func (c *Claims) Remaining(now time.Time) time.Duration {
	if !c.HasExpiry() || c.Expired(now) {
		return 0
	}
	return c.ExpiresAt.Sub(now)
}
