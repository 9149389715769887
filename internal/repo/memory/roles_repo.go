package memory

import (
	"context"

	"github.com/geocoder89/taskhub/internal/access"
	"github.com/geocoder89/taskhub/internal/domain/role"
)

type RolesRepo struct {
	s *Store
}

func (r *RolesRepo) GetByName(_ context.Context, name access.Role) (role.Role, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, ro := range r.s.roles {
		if ro.Name == name {
			return ro, nil
		}
	}
	return role.Role{}, role.ErrNotFound
}

func (r *RolesRepo) GetByID(_ context.Context, id string) (role.Role, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	ro, ok := r.s.roleByID(id)
	if !ok {
		return role.Role{}, role.ErrNotFound
	}
	return ro, nil
}

func (r *RolesRepo) ListAll(_ context.Context) ([]role.Role, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]role.Role, len(r.s.roles))
	copy(out, r.s.roles)
	return out, nil
}
