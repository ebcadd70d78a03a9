// Package authn resolves bearer tokens presented at the HTTP ingest,
// admin, and WebSocket subscriber surfaces into a principal: who is
// calling, whether they're an admin, and which devices they may see.
package authn

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims extends the registered JWT claim set with the gateway's own
// authorization fields, the same way the teacher's CustomClaims extends
// jwt.RegisteredClaims with a Role.
type Claims struct {
	jwt.RegisteredClaims
	IsAdmin        bool     `json:"is_admin"`
	AllowedDevices []string `json:"allowed_devices,omitempty"`
}

// GenerateToken signs a token for subject, valid for ttl. Used by
// operator tooling to mint device-scoped subscriber tokens and admin
// tokens; the gateway itself never issues tokens at runtime.
func GenerateToken(subject string, isAdmin bool, allowedDevices []string, secret string, ttl time.Duration) (string, error) {
	if ttl == 0 {
		ttl = 15 * time.Minute
	}
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		IsAdmin:        isAdmin,
		AllowedDevices: allowedDevices,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// ParseToken validates signature and expiry and returns the claims.
func ParseToken(tokenString, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}
	return claims, nil
}
