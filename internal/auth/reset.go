package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Password-reset tokens are short-lived JWTs with a distinct subject so a
// leaked reset token can never be replayed as a session token.

const resetSubject = "password-reset"

type resetClaims struct {
	UserID uuid.UUID `json:"user_id"`
	jwt.RegisteredClaims
}

// GenerateResetToken issues a token that authorizes exactly one thing:
// setting a new password for the given user. Delivery (email) is owned
// by an external mailer, not this service.
func GenerateResetToken(userID uuid.UUID, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := resetClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   resetSubject,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "codeorbit",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign reset token: %w", err)
	}
	return signed, nil
}

// ParseResetToken validates a reset token and returns the user it was
// issued for.
func ParseResetToken(tokenString, secret string) (uuid.UUID, error) {
	token, err := jwt.ParseWithClaims(tokenString, &resetClaims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(secret), nil
		},
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("parse reset token: %w", err)
	}

	claims, ok := token.Claims.(*resetClaims)
	if !ok || !token.Valid || claims.Subject != resetSubject {
		return uuid.Nil, fmt.Errorf("invalid reset token")
	}
	return claims.UserID, nil
}
