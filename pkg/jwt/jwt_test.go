package jwt

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	m := NewManager("s3cret")

	token, err := m.GenerateAccessToken("0b9d5b3e-5f0c-4a55-9a43-3c8f1c2d7e10", RoleAdmin, time.Hour)
	require.NoError(t, err)

	claims, err := m.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "0b9d5b3e-5f0c-4a55-9a43-3c8f1c2d7e10", claims.UserID)
	assert.True(t, claims.IsAdmin())
}

func TestValidateAccessToken_Rejections(t *testing.T) {
	m := NewManager("s3cret")

	expired, err := m.GenerateAccessToken("u1", RoleUser, -time.Minute)
	require.NoError(t, err)
	_, err = m.ValidateAccessToken(expired)
	assert.True(t, errors.Is(err, jwt.ErrTokenExpired))

	foreign, err := NewManager("other").GenerateAccessToken("u1", RoleUser, time.Hour)
	require.NoError(t, err)
	_, err = m.ValidateAccessToken(foreign)
	assert.True(t, errors.Is(err, jwt.ErrTokenSignatureInvalid))

	refresh, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: "u1",
		Type:   "refresh",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte("s3cret"))
	require.NoError(t, err)
	_, err = m.ValidateAccessToken(refresh)
	assert.True(t, errors.Is(err, ErrWrongTokenType))

	_, err = m.ValidateAccessToken("not.a.token")
	assert.Error(t, err)
}
