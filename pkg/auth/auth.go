// Task 2.4: Authentication package — JWT generation and parsing.
// This is a leaf package with no domain dependencies. Used by
// internal/api/middleware and the token subcommand. Auth is optional for
// this service: when no secret is configured the API runs open and this
// package is never consulted.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultExpiry is the token lifetime used when callers pass zero.
const DefaultExpiry = 24 * time.Hour

// Claims carries the caller identity. Actor is a free-form client name
// ("mobile-app", "keyboard-overlay") recorded in the audit trail.
type Claims struct {
	Actor string `json:"actor"`
	jwt.RegisteredClaims
}

// GenerateJWT creates a signed HS256 token for the given actor.
func GenerateJWT(secret []byte, actor string, expiry time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", fmt.Errorf("jwt secret is empty")
	}
	if expiry == 0 {
		expiry = DefaultExpiry
	}

	now := time.Now()
	claims := &Claims{
		Actor: actor,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign JWT: %w", err)
	}
	return signed, nil
}

// ParseJWT validates a token and extracts its claims. Returns an error for
// invalid, expired or malformed tokens.
func ParseJWT(secret []byte, tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, fmt.Errorf("token is empty")
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		// Pin HMAC to prevent algorithm substitution.
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse JWT: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid JWT claims or signature")
	}
	return claims, nil
}
