package security

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken indicates a session token that failed validation.
var ErrInvalidToken = errors.New("invalid session token")

// SessionClaims carries the authenticated user identity inside a JWT.
type SessionClaims struct {
	UserID uint64 `json:"-"`
	jwt.RegisteredClaims
}

// NewSessionToken signs a session JWT for the given user.
func NewSessionToken(secret string, expiry time.Duration, userID uint64) (string, error) {
	if secret == "" {
		return "", errors.New("jwt secret is not configured")
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatUint(userID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, errSign := token.SignedString([]byte(secret))
	if errSign != nil {
		return "", fmt.Errorf("sign session token: %w", errSign)
	}
	return signed, nil
}

// ParseSessionToken validates a session JWT and returns its claims.
func ParseSessionToken(secret, raw string) (SessionClaims, error) {
	parsed, errParse := jwt.ParseWithClaims(raw, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if errParse != nil || !parsed.Valid {
		return SessionClaims{}, ErrInvalidToken
	}

	registered, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok {
		return SessionClaims{}, ErrInvalidToken
	}
	userID, errAtoi := strconv.ParseUint(registered.Subject, 10, 64)
	if errAtoi != nil || userID == 0 {
		return SessionClaims{}, ErrInvalidToken
	}
	return SessionClaims{UserID: userID, RegisteredClaims: *registered}, nil
}
