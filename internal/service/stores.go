package service

import (
	"context"
	"time"

	"github.com/geocoder89/taskhub/internal/access"
	"github.com/geocoder89/taskhub/internal/domain/role"
	"github.com/geocoder89/taskhub/internal/domain/session"
	"github.com/geocoder89/taskhub/internal/domain/task"
	"github.com/geocoder89/taskhub/internal/domain/user"
)

// UserStore is the user directory. Create and Update report duplicate
// usernames or emails as user.ErrUsernameTaken / user.ErrEmailTaken.
type UserStore interface {
	Create(ctx context.Context, u user.User, roleIDs []string) (user.User, error)
	GetByID(ctx context.Context, id string) (user.User, error)
	GetByUsername(ctx context.Context, username string) (user.User, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Update(ctx context.Context, u user.User) (user.User, error)
	// UpdateEndingSessions is Update plus revocation of every live refresh
	// token of the user, committed together.
	UpdateEndingSessions(ctx context.Context, u user.User) (user.User, error)
	SetRoles(ctx context.Context, userID string, roleIDs []string) error
	// Delete removes the user together with their tasks, roles and sessions.
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, after *user.ListCursor, limit int) ([]user.User, error)
}

type RoleStore interface {
	GetByName(ctx context.Context, name access.Role) (role.Role, error)
	GetByID(ctx context.Context, id string) (role.Role, error)
	ListAll(ctx context.Context) ([]role.Role, error)
}

// TaskStore runs authorize inside the same transaction that locks the task,
// so the ownership check and the mutation see the same row.
type TaskStore interface {
	Create(ctx context.Context, t task.Task) (task.Task, error)
	GetByID(ctx context.Context, id string) (task.Task, error)
	ListByOwner(ctx context.Context, ownerID string) ([]task.Task, error)
	ToggleStatus(ctx context.Context, id string, authorize func(task.Task) error) (task.Task, error)
	Delete(ctx context.Context, id string, authorize func(task.Task) error) error
}

type RefreshTokenStore interface {
	Create(ctx context.Context, t session.RefreshToken) error
	// Rotate locks the current token, runs verify against it, revokes it and
	// stores next, all in one transaction.
	Rotate(ctx context.Context, currentID string, verify func(session.RefreshToken) error, next session.RefreshToken) error
	Revoke(ctx context.Context, id string) error
	RevokeAllForUser(ctx context.Context, userID string) error
	PurgeExpired(ctx context.Context, now time.Time, revokedBefore time.Time) (int64, error)
}

type PrincipalCache interface {
	Get(ctx context.Context, userID string) (access.Principal, bool)
	Set(ctx context.Context, p access.Principal)
	Invalidate(ctx context.Context, userID string)
}

type TokenDenylist interface {
	Deny(ctx context.Context, jti string, until time.Time) error
	IsDenied(ctx context.Context, jti string) (bool, error)
}
