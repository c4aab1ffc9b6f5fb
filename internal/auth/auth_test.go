package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionRoundTrip(t *testing.T) {
	s, err := NewSessions(time.Hour)
	require.NoError(t, err)

	token, err := s.CreateJWT("user-1")
	require.NoError(t, err)

	sub, err := s.AuthenticateJWT(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", sub)
}

func TestSessionRejectsForeignKey(t *testing.T) {
	a, err := NewSessions(0)
	require.NoError(t, err)
	b, err := NewSessions(0)
	require.NoError(t, err)

	token, err := a.CreateJWT("user-1")
	require.NoError(t, err)
	_, err = b.AuthenticateJWT(token)
	assert.Error(t, err)
}

func TestSessionRejectsExpired(t *testing.T) {
	s, err := NewSessions(0)
	require.NoError(t, err)
	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, jwt.MapClaims{
		"sub": "user-1",
		"exp": time.Now().Add(-time.Minute).Unix(),
	})
	signed, err := token.SignedString(s.privateKey)
	require.NoError(t, err)

	_, err = s.AuthenticateJWT(signed)
	assert.Error(t, err)
}

func TestSessionRejectsEmpty(t *testing.T) {
	s, err := NewSessions(0)
	require.NoError(t, err)
	_, err = s.AuthenticateJWT("")
	assert.ErrorIs(t, err, ErrMissingToken)
}

func TestPasswordHash(t *testing.T) {
	hash, err := CreateHash("correct horse", Params)
	require.NoError(t, err)

	ok, err := ComparePasswordAndHash("correct horse", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = ComparePasswordAndHash("wrong", hash)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = ComparePasswordAndHash("x", "not-a-hash")
	assert.ErrorIs(t, err, ErrInvalidHash)
}
