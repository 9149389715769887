package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/geocoder89/taskhub/internal/access"
)

func testPrincipal() access.Principal {
	return access.Principal{
		UserID:   "2b7f2f4e-0000-4000-8000-000000000001",
		Username: "alice",
		Roles:    access.NewRoleSet(access.RoleUser),
		Enabled:  true,
	}
}

func TestManager_AccessRoundTrip(t *testing.T) {
	m := NewManager("test-secret", 15*time.Minute, 24*time.Hour)

	tok, err := m.GenerateAccessToken(testPrincipal())
	require.NoError(t, err)

	claims, err := m.VerifyAccessToken(tok.Raw)
	require.NoError(t, err)
	require.Equal(t, "alice", claims.Username)
	require.Equal(t, []string{"USER"}, claims.Roles)
	require.Equal(t, tok.JTI, claims.JTI)
}

func TestManager_RejectsWrongType(t *testing.T) {
	m := NewManager("test-secret", time.Minute, time.Hour)

	refresh, err := m.GenerateRefreshToken(testPrincipal())
	require.NoError(t, err)

	_, err = m.VerifyAccessToken(refresh.Raw)
	require.ErrorIs(t, err, ErrInvalidTokenType)

	_, err = m.VerifyRefreshToken(refresh.Raw)
	require.NoError(t, err)
}

func TestManager_RejectsExpiredAndForeignTokens(t *testing.T) {
	m := NewManager("test-secret", time.Minute, time.Hour)
	tok, err := m.GenerateAccessToken(testPrincipal())
	require.NoError(t, err)

	m.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = m.VerifyAccessToken(tok.Raw)
	require.Error(t, err)

	other := NewManager("other-secret", time.Minute, time.Hour)
	_, err = other.VerifyAccessToken(tok.Raw)
	require.Error(t, err)
}

func TestManager_HashRefreshTokenIsDeterministic(t *testing.T) {
	m := NewManager("test-secret", time.Minute, time.Hour)
	require.Equal(t, m.HashRefreshToken("abc"), m.HashRefreshToken("abc"))
	require.NotEqual(t, m.HashRefreshToken("abc"), m.HashRefreshToken("abd"))
}
