package memory

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/geocoder89/taskhub/internal/access"
	"github.com/geocoder89/taskhub/internal/domain/role"
	"github.com/geocoder89/taskhub/internal/domain/session"
	"github.com/geocoder89/taskhub/internal/domain/task"
	"github.com/geocoder89/taskhub/internal/domain/user"
)

// Store is an in-process relational store: one lock guards every table so
// cascades and multi-row changes are atomic.
type Store struct {
	mu sync.RWMutex

	roles     []role.Role
	users     map[string]user.User
	userRoles map[string][]string // user id -> role ids
	tasks     map[string]task.Task
	taskOrder []string
	refresh   map[string]session.RefreshToken

	Users         *UsersRepo
	Roles         *RolesRepo
	Tasks         *TasksRepo
	RefreshTokens *RefreshTokensRepo
}

type Option func(*Store)

// WithoutDefaultRoles leaves the role table empty.
func WithoutDefaultRoles() Option {
	return func(s *Store) { s.roles = nil }
}

func NewStore(opts ...Option) *Store {
	s := &Store{
		roles: []role.Role{
			{ID: uuid.NewString(), Name: access.RoleUser},
			{ID: uuid.NewString(), Name: access.RoleAdmin},
		},
		users:     make(map[string]user.User),
		userRoles: make(map[string][]string),
		tasks:     make(map[string]task.Task),
		refresh:   make(map[string]session.RefreshToken),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.Users = &UsersRepo{s: s}
	s.Roles = &RolesRepo{s: s}
	s.Tasks = &TasksRepo{s: s}
	s.RefreshTokens = &RefreshTokensRepo{s: s}
	return s
}

// revokeAllLocked requires s.mu to be held for writing.
func (s *Store) revokeAllLocked(userID string, now time.Time) {
	for id, t := range s.refresh {
		if t.UserID == userID && t.RevokedAt == nil {
			t.RevokedAt = &now
			s.refresh[id] = t
		}
	}
}

// Ping satisfies readiness checks.
func (s *Store) Ping() error { return nil }

func (s *Store) roleByID(id string) (role.Role, bool) {
	for _, r := range s.roles {
		if r.ID == id {
			return r, true
		}
	}
	return role.Role{}, false
}

// withRoles must be called with s.mu held.
func (s *Store) withRoles(u user.User) user.User {
	ids := s.userRoles[u.ID]
	u.Roles = make([]role.Role, 0, len(ids))
	for _, id := range ids {
		if r, ok := s.roleByID(id); ok {
			u.Roles = append(u.Roles, r)
		}
	}
	return u
}
