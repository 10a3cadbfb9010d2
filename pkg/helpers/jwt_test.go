package helpers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	m := NewJWTManager("access-secret", "refresh-secret", time.Hour, 24*time.Hour)

	tok, exp, err := m.GenerateAccessToken("6523f1", "a@b.c", "alice", "Alice A")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	claims, err := m.ParseAccessToken(tok)
	require.NoError(t, err)
	assert.Equal(t, "6523f1", claims.UserID)
	assert.Equal(t, "a@b.c", claims.Email)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "Alice A", claims.FullName)
}

func TestRefreshTokenRoundTrip(t *testing.T) {
	m := NewJWTManager("access-secret", "refresh-secret", time.Hour, 24*time.Hour)

	tok, _, err := m.GenerateRefreshToken("6523f1")
	require.NoError(t, err)

	claims, err := m.ParseRefreshToken(tok)
	require.NoError(t, err)
	assert.Equal(t, "6523f1", claims.UserID)
}

func TestTokenKindsAreNotInterchangeable(t *testing.T) {
	m := NewJWTManager("access-secret", "refresh-secret", time.Hour, 24*time.Hour)

	access, _, err := m.GenerateAccessToken("u1", "a@b.c", "alice", "Alice")
	require.NoError(t, err)
	refresh, _, err := m.GenerateRefreshToken("u1")
	require.NoError(t, err)

	// Distinct secrets: an access token must not verify as a refresh token
	// and vice versa.
	_, err = m.ParseRefreshToken(access)
	assert.Error(t, err)
	_, err = m.ParseAccessToken(refresh)
	assert.Error(t, err)
}

func TestParseAccessTokenWrongSecret(t *testing.T) {
	a := NewJWTManager("secret-a", "refresh", time.Hour, time.Hour)
	tok, _, err := a.GenerateAccessToken("u1", "a@b.c", "alice", "Alice")
	require.NoError(t, err)

	b := NewJWTManager("secret-b", "refresh", time.Hour, time.Hour)
	_, err = b.ParseAccessToken(tok)
	assert.Error(t, err)
}

func TestParseAccessTokenExpired(t *testing.T) {
	m := NewJWTManager("access-secret", "refresh-secret", -time.Minute, time.Hour)
	tok, _, err := m.GenerateAccessToken("u1", "a@b.c", "alice", "Alice")
	require.NoError(t, err)

	_, err = m.ParseAccessToken(tok)
	assert.Error(t, err)
}

func TestParseAccessTokenMalformed(t *testing.T) {
	m := NewJWTManager("access-secret", "refresh-secret", time.Hour, time.Hour)
	_, err := m.ParseAccessToken("not.a.jwt")
	assert.Error(t, err)
}
