// internal/auth/session_test.go
package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	t.Setenv("TOKEN_EXPIRE_TIME", "1h")
	require.NoError(t, Init())

	token, err := CreateJWT("KITCH1", "player-abc")
	require.NoError(t, err)

	room, player, err := AuthenticateJWT(token)
	require.NoError(t, err)
	assert.Equal(t, "KITCH1", room)
	assert.Equal(t, "player-abc", player)
}

func TestTokenFromOtherKeyRejected(t *testing.T) {
	t.Setenv("TOKEN_EXPIRE_TIME", "")
	require.NoError(t, Init())
	token, err := CreateJWT("KITCH1", "player-abc")
	require.NoError(t, err)

	require.NoError(t, Init())
	_, _, err = AuthenticateJWT(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestExpiredTokenRejected(t *testing.T) {
	t.Setenv("TOKEN_EXPIRE_TIME", "")
	require.NoError(t, Init())

	claims := jwt.MapClaims{
		"sub":  "player-abc",
		"room": "KITCH1",
		"exp":  time.Now().Add(-time.Minute).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(privateKey)
	require.NoError(t, err)

	_, _, err = AuthenticateJWT(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenMissingRoomRejected(t *testing.T) {
	t.Setenv("TOKEN_EXPIRE_TIME", "")
	require.NoError(t, Init())

	token, err := jwt.NewWithClaims(jwt.SigningMethodEdDSA, jwt.MapClaims{"sub": "p"}).SignedString(privateKey)
	require.NoError(t, err)

	_, _, err = AuthenticateJWT(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestBadExpireTime(t *testing.T) {
	t.Setenv("TOKEN_EXPIRE_TIME", "forever")
	assert.Error(t, Init())
}
