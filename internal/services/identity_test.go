package services

import (
	"testing"
	"time"

	"chatsync/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signed(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("server-side"))
	require.NoError(t, err)
	return s
}

func TestIdentityFromToken(t *testing.T) {
	u, err := IdentityFromToken(signed(t, jwt.MapClaims{"user_id": 42, "username": "alice", "role": "Mentor", "level": 7}))
	require.NoError(t, err)
	assert.Equal(t, User{ID: 42, Username: "alice", Role: models.RoleMentor, Level: 7}, u)

	u, err = IdentityFromToken(signed(t, jwt.MapClaims{"username": "bob", "role": "superuser"}))
	require.NoError(t, err)
	assert.Equal(t, models.RoleUser, u.Role)

	_, err = IdentityFromToken(signed(t, jwt.MapClaims{"user_id": 1}))
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = IdentityFromToken("garbage")
	assert.Error(t, err)
}

func TestBridgeToken(t *testing.T) {
	tok, err := IssueBridgeToken("s3cret", "alice", time.Hour)
	require.NoError(t, err)

	claims, err := ValidateBridgeToken("s3cret", tok)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims["username"])

	_, err = ValidateBridgeToken("other", tok)
	assert.Error(t, err)

	expired, err := IssueBridgeToken("s3cret", "alice", -time.Minute)
	require.NoError(t, err)
	_, err = ValidateBridgeToken("s3cret", expired)
	assert.Error(t, err)

	noAud, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"username": "alice",
		"exp":      time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("s3cret"))
	require.NoError(t, err)
	_, err = ValidateBridgeToken("s3cret", noAud)
	assert.Error(t, err, "tokens without the bridge audience are rejected")

	_, err = IssueBridgeToken("", "alice", time.Hour)
	assert.Error(t, err)
}
