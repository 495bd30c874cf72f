package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const resetTokenType = "reset"

var ErrInvalidResetToken = errors.New("invalid reset token")

type ResetClaims struct {
	Type  string `json:"type"`
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// GenerateResetToken signs a short-lived password reset token for email.
func GenerateResetToken(key []byte, email string, now time.Time, ttl time.Duration) (string, error) {
	claims := ResetClaims{
		Type:  resetTokenType,
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(key)
}

// ParseResetToken returns the email a valid reset token was issued for.
// Tokens of any other type are rejected.
func ParseResetToken(key []byte, tokenStr string, now time.Time) (string, error) {
	claims := &ResetClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		return key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return "", fmt.Errorf("%w: %v", ErrInvalidResetToken, err)
	}

	if claims.Type != resetTokenType || claims.Email == "" {
		return "", ErrInvalidResetToken
	}

	return claims.Email, nil
}
