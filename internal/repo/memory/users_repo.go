package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/geocoder89/taskhub/internal/domain/role"
	"github.com/geocoder89/taskhub/internal/domain/user"
)

type UsersRepo struct {
	s *Store
}

// uniqueness must be called with s.mu held.
func (r *UsersRepo) uniqueness(u user.User) error {
	for _, other := range r.s.users {
		if other.ID == u.ID {
			continue
		}
		if other.Username == u.Username {
			return user.ErrUsernameTaken
		}
		if strings.EqualFold(other.Email, u.Email) {
			return user.ErrEmailTaken
		}
	}
	return nil
}

func (r *UsersRepo) Create(_ context.Context, u user.User, roleIDs []string) (user.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if err := r.uniqueness(u); err != nil {
		return user.User{}, err
	}
	for _, id := range roleIDs {
		if _, ok := r.s.roleByID(id); !ok {
			return user.User{}, role.ErrNotFound
		}
	}

	u.Roles = nil
	r.s.users[u.ID] = u
	r.s.userRoles[u.ID] = append([]string(nil), roleIDs...)

	return r.s.withRoles(u), nil
}

func (r *UsersRepo) GetByID(_ context.Context, id string) (user.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	u, ok := r.s.users[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	return r.s.withRoles(u), nil
}

func (r *UsersRepo) GetByUsername(_ context.Context, username string) (user.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, u := range r.s.users {
		if u.Username == username {
			return r.s.withRoles(u), nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (r *UsersRepo) ExistsByUsername(_ context.Context, username string) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, u := range r.s.users {
		if u.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func (r *UsersRepo) ExistsByEmail(_ context.Context, email string) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, u := range r.s.users {
		if strings.EqualFold(u.Email, email) {
			return true, nil
		}
	}
	return false, nil
}

func (r *UsersRepo) Update(_ context.Context, u user.User) (user.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	return r.updateLocked(u)
}

// UpdateEndingSessions writes u and revokes the user's live refresh tokens
// under one lock.
func (r *UsersRepo) UpdateEndingSessions(_ context.Context, u user.User) (user.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	updated, err := r.updateLocked(u)
	if err != nil {
		return user.User{}, err
	}
	r.s.revokeAllLocked(u.ID, time.Now())
	return updated, nil
}

func (r *UsersRepo) updateLocked(u user.User) (user.User, error) {
	cur, ok := r.s.users[u.ID]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	if err := r.uniqueness(u); err != nil {
		return user.User{}, err
	}

	u.CreatedAt = cur.CreatedAt
	u.Roles = nil
	r.s.users[u.ID] = u
	return r.s.withRoles(u), nil
}

func (r *UsersRepo) SetRoles(_ context.Context, userID string, roleIDs []string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.users[userID]; !ok {
		return user.ErrNotFound
	}
	for _, id := range roleIDs {
		if _, ok := r.s.roleByID(id); !ok {
			return role.ErrNotFound
		}
	}
	r.s.userRoles[userID] = append([]string(nil), roleIDs...)
	return nil
}

// Delete cascades to tasks, role links and refresh tokens.
func (r *UsersRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.users[id]; !ok {
		return user.ErrNotFound
	}

	delete(r.s.users, id)
	delete(r.s.userRoles, id)

	kept := r.s.taskOrder[:0]
	for _, tid := range r.s.taskOrder {
		if r.s.tasks[tid].OwnerID == id {
			delete(r.s.tasks, tid)
			continue
		}
		kept = append(kept, tid)
	}
	r.s.taskOrder = kept

	for tokID, tok := range r.s.refresh {
		if tok.UserID == id {
			delete(r.s.refresh, tokID)
		}
	}
	return nil
}

func (r *UsersRepo) List(_ context.Context, after *user.ListCursor, limit int) ([]user.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	all := make([]user.User, 0, len(r.s.users))
	for _, u := range r.s.users {
		all = append(all, u)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID < all[j].ID
		}
		return all[i].CreatedAt.Before(all[j].CreatedAt)
	})

	out := make([]user.User, 0, limit)
	for _, u := range all {
		if after != nil {
			if u.CreatedAt.Before(after.CreatedAt) {
				continue
			}
			if u.CreatedAt.Equal(after.CreatedAt) && u.ID <= after.ID {
				continue
			}
		}
		out = append(out, r.s.withRoles(u))
		if len(out) == limit {
			break
		}
	}
	return out, nil
}
