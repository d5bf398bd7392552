package security

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Intake scopes
const (
	ScopeSMS   = "sms:write"
	ScopeAdmin = "admin"
)

// IntakeClaims identify an SMS relay or operator tool calling the intake API.
type IntakeClaims struct {
	Client string   `json:"client"`
	Scopes []string `json:"scopes"`
	jwt.RegisteredClaims
}

// HasScope reports whether the token was issued for scope.
func (c *IntakeClaims) HasScope(scope string) bool {
	for _, s := range c.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// GenerateIntakeToken signs a bearer token for an intake client.
func GenerateIntakeToken(client string, scopes []string, ttl time.Duration, secret string) (string, error) {
	if client == "" {
		return "", fmt.Errorf("client name is required")
	}
	now := time.Now()
	claims := &IntakeClaims{
		Client: client,
		Scopes: scopes,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   client,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ValidateIntakeToken validates and parses an intake bearer token
func ValidateIntakeToken(tokenString, secret string) (*IntakeClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &IntakeClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*IntakeClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, fmt.Errorf("invalid token")
}

// GenerateSecureCode returns an uppercase alphanumeric code, used for gift codes.
func GenerateSecureCode(length int) (string, error) {
	const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	b := make([]byte, length)
	for i := range b {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		b[i] = charset[n.Int64()]
	}
	return string(b), nil
}
