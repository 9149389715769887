package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/geocoder89/taskhub/internal/access"
	"github.com/geocoder89/taskhub/internal/apperr"
	"github.com/geocoder89/taskhub/internal/auth"
	"github.com/geocoder89/taskhub/internal/domain/session"
	"github.com/geocoder89/taskhub/internal/domain/user"
	"github.com/geocoder89/taskhub/internal/security"
)

var (
	ErrInvalidCredentials = apperr.New(apperr.ErrUnauthenticated, "invalid username or password")
	ErrInvalidSession     = apperr.New(apperr.ErrUnauthenticated, "session is invalid or expired")
)

type UserLookup interface {
	GetByID(ctx context.Context, id string) (user.User, error)
	GetByUsername(ctx context.Context, username string) (user.User, error)
}

// Tokens is an issued access/refresh pair.
type Tokens struct {
	Access  auth.IssuedToken
	Refresh auth.IssuedToken
}

type LoginResult struct {
	Principal access.Principal
	Landing   string
	Tokens    Tokens
}

// Session is what a verified access token resolves to.
type Session struct {
	Principal access.Principal
	TokenID   string
	ExpiresAt time.Time
}

type AuthService struct {
	users      UserLookup
	hasher     security.Hasher
	tokens     *auth.Manager
	refresh    RefreshTokenStore
	principals PrincipalCache
	denylist   TokenDenylist
	now        func() time.Time
}

func NewAuthService(users UserLookup, hasher security.Hasher, tokens *auth.Manager, refresh RefreshTokenStore, principals PrincipalCache, denylist TokenDenylist) *AuthService {
	return &AuthService{
		users:      users,
		hasher:     hasher,
		tokens:     tokens,
		refresh:    refresh,
		principals: principals,
		denylist:   denylist,
		now:        time.Now,
	}
}

// Login verifies credentials and computes the landing page exactly once for
// this login event.
func (s *AuthService) Login(ctx context.Context, username, password string) (LoginResult, error) {
	u, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			slog.Default().InfoContext(ctx, "auth.login_failed", "username", username, "reason", "unknown_user")
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, fmt.Errorf("load user: %w", err)
	}

	if !s.hasher.Verify(password, u.PasswordHash) {
		slog.Default().InfoContext(ctx, "auth.login_failed", "username", username, "reason", "bad_password")
		return LoginResult{}, ErrInvalidCredentials
	}
	if !u.Enabled {
		slog.Default().InfoContext(ctx, "auth.login_failed", "username", username, "reason", "disabled")
		return LoginResult{}, ErrInvalidCredentials
	}

	p := u.Principal()
	pair, err := s.issue(ctx, p)
	if err != nil {
		return LoginResult{}, err
	}

	s.principals.Set(ctx, p)
	slog.Default().InfoContext(ctx, "auth.login", "user_id", p.UserID)

	return LoginResult{
		Principal: p,
		Landing:   access.LandingPage(p.Roles),
		Tokens:    pair,
	}, nil
}

func (s *AuthService) issue(ctx context.Context, p access.Principal) (Tokens, error) {
	accessTok, err := s.tokens.GenerateAccessToken(p)
	if err != nil {
		return Tokens{}, fmt.Errorf("sign access token: %w", err)
	}
	refreshTok, err := s.tokens.GenerateRefreshToken(p)
	if err != nil {
		return Tokens{}, fmt.Errorf("sign refresh token: %w", err)
	}

	err = s.refresh.Create(ctx, s.refreshRow(p.UserID, refreshTok))
	if err != nil {
		return Tokens{}, fmt.Errorf("store refresh token: %w", err)
	}

	return Tokens{Access: accessTok, Refresh: refreshTok}, nil
}

func (s *AuthService) refreshRow(userID string, tok auth.IssuedToken) session.RefreshToken {
	return session.RefreshToken{
		ID:        tok.JTI,
		UserID:    userID,
		TokenHash: s.tokens.HashRefreshToken(tok.Raw),
		ExpiresAt: tok.ExpiresAt,
		CreatedAt: s.now().UTC(),
	}
}

// Refresh rotates a refresh token. The presented token is revoked and
// replaced in one transaction; reuse of a revoked token fails.
func (s *AuthService) Refresh(ctx context.Context, raw string) (Tokens, error) {
	claims, err := s.tokens.VerifyRefreshToken(raw)
	if err != nil {
		return Tokens{}, ErrInvalidSession
	}

	u, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return Tokens{}, ErrInvalidSession
		}
		return Tokens{}, fmt.Errorf("load user: %w", err)
	}
	if !u.Enabled {
		return Tokens{}, ErrInvalidSession
	}

	p := u.Principal()
	accessTok, err := s.tokens.GenerateAccessToken(p)
	if err != nil {
		return Tokens{}, fmt.Errorf("sign access token: %w", err)
	}
	refreshTok, err := s.tokens.GenerateRefreshToken(p)
	if err != nil {
		return Tokens{}, fmt.Errorf("sign refresh token: %w", err)
	}

	hash := s.tokens.HashRefreshToken(raw)
	now := s.now()

	err = s.refresh.Rotate(ctx, claims.JTI, func(cur session.RefreshToken) error {
		if cur.UserID != claims.UserID || cur.TokenHash != hash || !cur.Active(now) {
			return ErrInvalidSession
		}
		return nil
	}, s.refreshRow(p.UserID, refreshTok))
	if err != nil {
		if errors.Is(err, apperr.ErrUnauthenticated) {
			slog.Default().InfoContext(ctx, "auth.refresh_rejected", "user_id", claims.UserID)
			return Tokens{}, ErrInvalidSession
		}
		return Tokens{}, fmt.Errorf("rotate refresh token: %w", err)
	}

	return Tokens{Access: accessTok, Refresh: refreshTok}, nil
}

// Logout revokes the refresh token and denylists the access token until it
// would have expired anyway. Either argument may be empty.
func (s *AuthService) Logout(ctx context.Context, rawRefresh string, accessJTI string, accessExp time.Time) error {
	var errs []error

	if rawRefresh != "" {
		if claims, err := s.tokens.VerifyRefreshToken(rawRefresh); err == nil {
			if err := s.refresh.Revoke(ctx, claims.JTI); err != nil && !errors.Is(err, session.ErrRefreshTokenNotFound) {
				errs = append(errs, fmt.Errorf("revoke refresh token: %w", err))
			}
		}
	}

	if accessJTI != "" {
		if err := s.denylist.Deny(ctx, accessJTI, accessExp); err != nil {
			errs = append(errs, fmt.Errorf("deny access token: %w", err))
		}
	}

	return errors.Join(errs...)
}

// Authenticate resolves an access token into the current principal. Roles
// and the enabled flag come from the store, not the token.
func (s *AuthService) Authenticate(ctx context.Context, raw string) (Session, error) {
	claims, err := s.tokens.VerifyAccessToken(raw)
	if err != nil {
		return Session{}, ErrInvalidSession
	}

	denied, err := s.denylist.IsDenied(ctx, claims.JTI)
	if err != nil {
		slog.Default().WarnContext(ctx, "auth.denylist_unavailable", "err", err)
	}
	if denied {
		return Session{}, ErrInvalidSession
	}

	var exp time.Time
	if claims.ExpiresAt != nil {
		exp = claims.ExpiresAt.Time
	}

	if p, ok := s.principals.Get(ctx, claims.UserID); ok {
		return Session{Principal: p, TokenID: claims.JTI, ExpiresAt: exp}, nil
	}

	u, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return Session{}, ErrInvalidSession
		}
		return Session{}, fmt.Errorf("load principal: %w", err)
	}

	p := u.Principal()
	s.principals.Set(ctx, p)

	return Session{Principal: p, TokenID: claims.JTI, ExpiresAt: exp}, nil
}
