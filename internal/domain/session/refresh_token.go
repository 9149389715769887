package session

import (
	"time"

	"github.com/geocoder89/taskhub/internal/apperr"
)

type RefreshToken struct {
	ID         string
	UserID     string
	TokenHash  string
	ExpiresAt  time.Time
	RevokedAt  *time.Time
	ReplacedBy *string
	CreatedAt  time.Time
}

var ErrRefreshTokenNotFound = apperr.New(apperr.ErrUnauthenticated, "refresh token not found")

func (t RefreshToken) Active(now time.Time) bool {
	return t.RevokedAt == nil && now.Before(t.ExpiresAt)
}
