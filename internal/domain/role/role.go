package role

import (
	"github.com/geocoder89/taskhub/internal/access"
	"github.com/geocoder89/taskhub/internal/apperr"
)

type Role struct {
	ID   string      `json:"id"`
	Name access.Role `json:"name"`
}

var ErrNotFound = apperr.New(apperr.ErrNotFound, "role not found")

// Set folds stored roles into a capability set.
func Set(roles []Role) access.RoleSet {
	var s access.RoleSet
	for _, r := range roles {
		s = s.With(r.Name)
	}
	return s
}
