package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"chatsync/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// User is the local identity carried by the chat server's access token.
type User struct {
	ID       int
	Username string
	Role     models.Role
	Level    int
}

// IdentityFromToken reads the user claims of an access token. The signature is not
// checked here: the token was issued to us and the chat server verifies it on use.
func IdentityFromToken(token string) (User, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return User{}, fmt.Errorf("parse access token: %w", err)
	}

	var u User
	if uid, ok := claims["user_id"].(float64); ok {
		u.ID = int(uid)
	}
	u.Username, _ = claims["username"].(string)
	if u.Username == "" {
		return User{}, fmt.Errorf("%w: no username claim", ErrInvalidToken)
	}
	role, _ := claims["role"].(string)
	u.Role = normalizeRole(role)
	if lvl, ok := claims["level"].(float64); ok {
		u.Level = int(lvl)
	}
	return u, nil
}

func normalizeRole(s string) models.Role {
	switch r := models.Role(strings.ToLower(strings.TrimSpace(s))); r {
	case models.RoleAdmin, models.RoleMentor:
		return r
	}
	return models.RoleUser
}

// ParseRole maps a configured role name onto a Role. Unknown names become user.
func ParseRole(s string) models.Role {
	return normalizeRole(s)
}

// IssueBridgeToken signs a token a local front end presents to the bridge.
func IssueBridgeToken(secret, username string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("bridge secret is empty")
	}
	claims := jwt.MapClaims{
		"username": username,
		"aud":      "chatsync-bridge",
		"exp":      time.Now().Add(ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ValidateBridgeToken checks signature, expiry and audience of a bridge token.
func ValidateBridgeToken(secret, tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	}, jwt.WithAudience("chatsync-bridge"), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, ErrInvalidToken
}
