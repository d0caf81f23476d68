package util

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AdminClaims is the JWT payload of a panel operator session.
type AdminClaims struct {
	AdminID uint `json:"admin_id"`
	jwt.RegisteredClaims
}

// SubscriptionClaims is the JWT payload of a subscription token. The token
// only names the user; everything else is resolved at fetch time.
type SubscriptionClaims struct {
	Username string `json:"sub_user"`
	jwt.RegisteredClaims
}

// GenerateAdminToken signs a session token for an admin.
func GenerateAdminToken(secret string, adminID uint, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	now := time.Now()
	claims := &AdminClaims{
		AdminID: adminID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseAdminToken parses and verifies an admin session token.
func ParseAdminToken(secret, tokenStr string) (*AdminClaims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &AdminClaims{}, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*AdminClaims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

// CreateSubscriptionToken signs a subscription token for a username.
func CreateSubscriptionToken(secret, username string, ttl time.Duration) (string, error) {
	if username == "" {
		return "", fmt.Errorf("username is empty")
	}
	now := time.Now()
	claims := &SubscriptionClaims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseSubscriptionToken parses and verifies a subscription token and
// returns the username it was issued to.
func ParseSubscriptionToken(secret, tokenStr string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &SubscriptionClaims{}, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return "", err
	}
	claims, ok := token.Claims.(*SubscriptionClaims)
	if !ok || !token.Valid || claims.Username == "" {
		return "", jwt.ErrTokenInvalidClaims
	}
	return claims.Username, nil
}
