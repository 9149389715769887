package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/geocoder89/taskhub/internal/access"
	"github.com/geocoder89/taskhub/internal/apperr"
	"github.com/geocoder89/taskhub/internal/domain/role"
)

// RoleService is the role registry.
type RoleService struct {
	roles RoleStore
}

func NewRoleService(roles RoleStore) *RoleService {
	return &RoleService{roles: roles}
}

// DefaultRole returns the USER role. A missing default role is a deployment
// fault and is reported as apperr.ErrConfiguration.
func (s *RoleService) DefaultRole(ctx context.Context) (role.Role, error) {
	return s.required(ctx, access.RoleUser)
}

func (s *RoleService) required(ctx context.Context, name access.Role) (role.Role, error) {
	r, err := s.roles.GetByName(ctx, name)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return role.Role{}, fmt.Errorf("%w: role %s is not provisioned", apperr.ErrConfiguration, name)
		}
		return role.Role{}, fmt.Errorf("load role %s: %w", name, err)
	}
	return r, nil
}

func (s *RoleService) FindByID(ctx context.Context, id string) (role.Role, error) {
	return s.roles.GetByID(ctx, id)
}

func (s *RoleService) ListAll(ctx context.Context) ([]role.Role, error) {
	return s.roles.ListAll(ctx)
}

// CheckProvisioned fails unless every known role exists. Run at startup.
func (s *RoleService) CheckProvisioned(ctx context.Context) error {
	for _, name := range []access.Role{access.RoleUser, access.RoleAdmin} {
		if _, err := s.required(ctx, name); err != nil {
			return err
		}
	}
	return nil
}
