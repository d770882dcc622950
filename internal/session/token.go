// Package session resolves the acting user of a request from a bearer token
// and exposes it to handlers as a lifecycle.Actor.
package session

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/NovaByteCorp/deliverypro/internal/entity"
)

// ErrInvalidToken is returned for tokens that fail verification.
var ErrInvalidToken = errors.New("invalid token")

// Claims carries the user identity inside the JWT.
type Claims struct {
	UserID string      `json:"user_id"`
	Role   entity.Role `json:"role"`
	Email  string      `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// IssueToken signs an HS256 token for user.
func IssueToken(user *entity.User, secret string, expiration time.Duration) (string, error) {
	if user == nil || user.ID == "" {
		return "", errors.New("user is required")
	}
	if !user.UserType.Valid() {
		return "", errors.New("unknown user type")
	}
	now := time.Now()
	claims := Claims{
		UserID: user.ID,
		Role:   user.UserType,
		Email:  user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(expiration)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseToken verifies tokenString and returns its claims.
func ParseToken(tokenString, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" || !claims.Role.Valid() {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
