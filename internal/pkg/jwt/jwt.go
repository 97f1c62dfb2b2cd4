// Package jwt reads the claims of tokens issued by the SACCO API. The console
// does not hold the signing key, so tokens are inspected, never verified;
// the API remains the only authority on validity.
package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrTokenMalformed = errors.New("token is malformed")

// Claims represents the claims the console shows or uses
type Claims struct {
	UserID interface{} `json:"userId,omitempty"`
	Email  string      `json:"email,omitempty"`
	Role   string      `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Inspect decodes the claims of token without checking its signature
func Inspect(token string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, ErrTokenMalformed
	}
	return claims, nil
}

// ExpiresAt returns the exp claim of token, if it has one
func ExpiresAt(token string) (time.Time, bool) {
	claims, err := Inspect(token)
	if err != nil || claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// Expired reports whether token carries an exp claim that is before now.
// Tokens without one are never considered expired here.
func Expired(token string, now time.Time) bool {
	exp, ok := ExpiresAt(token)
	return ok && !now.Before(exp)
}
