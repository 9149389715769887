package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/geocoder89/taskhub/internal/access"
	"github.com/geocoder89/taskhub/internal/apperr"
	"github.com/geocoder89/taskhub/internal/service"
)

func TestLogin_LandingPageByRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.register(t, "alice")
	f.admin(t)

	res, err := f.auth.Login(ctx, "alice", "password1")
	require.NoError(t, err)
	require.Equal(t, access.UserDashboard, res.Landing)

	res, err = f.auth.Login(ctx, "administrator", "adminpass")
	require.NoError(t, err)
	require.Equal(t, access.AdminDashboard, res.Landing)
	require.True(t, res.Principal.Roles.Has(access.RoleUser))

	_, err = f.auth.Login(ctx, "alice", "nope")
	require.ErrorIs(t, err, apperr.ErrUnauthenticated)

	_, err = f.auth.Login(ctx, "nobody", "nope")
	require.ErrorIs(t, err, service.ErrInvalidCredentials)
}

func TestAuthenticate_UsesStoredPrincipal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice")

	res, err := f.auth.Login(ctx, "alice", "password1")
	require.NoError(t, err)

	sess, err := f.auth.Authenticate(ctx, res.Tokens.Access.Raw)
	require.NoError(t, err)
	require.Equal(t, alice.ID, sess.Principal.UserID)
	require.True(t, sess.Principal.Enabled)

	_, err = f.auth.Authenticate(ctx, res.Tokens.Refresh.Raw)
	require.ErrorIs(t, err, service.ErrInvalidSession)

	_, err = f.auth.Authenticate(ctx, "garbage")
	require.ErrorIs(t, err, service.ErrInvalidSession)
}

func TestRefresh_RotatesAndRejectsReuse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "alice")

	res, err := f.auth.Login(ctx, "alice", "password1")
	require.NoError(t, err)

	next, err := f.auth.Refresh(ctx, res.Tokens.Refresh.Raw)
	require.NoError(t, err)
	require.NotEqual(t, res.Tokens.Refresh.JTI, next.Refresh.JTI)

	old, ok := f.store.RefreshTokens.Get(res.Tokens.Refresh.JTI)
	require.True(t, ok)
	require.NotNil(t, old.RevokedAt)
	require.Equal(t, next.Refresh.JTI, *old.ReplacedBy)

	_, err = f.auth.Refresh(ctx, res.Tokens.Refresh.Raw)
	require.ErrorIs(t, err, service.ErrInvalidSession)
}

func TestLogout_DenylistsAccessAndRevokesRefresh(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "alice")

	res, err := f.auth.Login(ctx, "alice", "password1")
	require.NoError(t, err)

	require.NoError(t, f.auth.Logout(ctx, res.Tokens.Refresh.Raw, res.Tokens.Access.JTI, res.Tokens.Access.ExpiresAt))

	_, err = f.auth.Authenticate(ctx, res.Tokens.Access.Raw)
	require.ErrorIs(t, err, service.ErrInvalidSession)

	_, err = f.auth.Refresh(ctx, res.Tokens.Refresh.Raw)
	require.ErrorIs(t, err, service.ErrInvalidSession)
}

func TestAuthenticate_DeletedUserIsRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice")
	admin := f.admin(t)

	res, err := f.auth.Login(ctx, "alice", "password1")
	require.NoError(t, err)

	require.NoError(t, f.users.Delete(ctx, admin, alice.ID))

	_, err = f.auth.Authenticate(ctx, res.Tokens.Access.Raw)
	require.ErrorIs(t, err, service.ErrInvalidSession)
}
