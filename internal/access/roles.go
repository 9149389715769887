package access

import (
	"encoding/json"
	"sort"
	"strings"
)

// Role is a named permission group. Stored role names are parsed into a Role
// once, at the store boundary.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// knownRoles fixes the bit position of every role in a RoleSet. Append only.
var knownRoles = []Role{RoleUser, RoleAdmin}

func (r Role) bit() (RoleSet, bool) {
	for i, k := range knownRoles {
		if k == r {
			return RoleSet(1) << uint(i), true
		}
	}
	return 0, false
}

func (r Role) String() string { return string(r) }

// ParseRole accepts both bare names and the legacy "ROLE_" prefixed form.
func ParseRole(name string) (Role, bool) {
	n := strings.ToUpper(strings.TrimSpace(name))
	n = strings.TrimPrefix(n, "ROLE_")

	r := Role(n)
	if _, ok := r.bit(); !ok {
		return "", false
	}
	return r, true
}

// RoleSet is an immutable set of known roles.
type RoleSet uint32

func NewRoleSet(roles ...Role) RoleSet {
	var s RoleSet
	for _, r := range roles {
		if b, ok := r.bit(); ok {
			s |= b
		}
	}
	return s
}

// RoleSetFromNames parses stored names and drops any it does not know.
func RoleSetFromNames(names ...string) RoleSet {
	var s RoleSet
	for _, n := range names {
		if r, ok := ParseRole(n); ok {
			s = s.With(r)
		}
	}
	return s
}

func (s RoleSet) With(r Role) RoleSet {
	b, _ := r.bit()
	return s | b
}

func (s RoleSet) Has(r Role) bool {
	b, ok := r.bit()
	return ok && s&b != 0
}

// HasAny reports whether s shares at least one role with other.
func (s RoleSet) HasAny(other RoleSet) bool { return s&other != 0 }

func (s RoleSet) Empty() bool { return s == 0 }

func (s RoleSet) Roles() []Role {
	out := make([]Role, 0, len(knownRoles))
	for _, r := range knownRoles {
		if s.Has(r) {
			out = append(out, r)
		}
	}
	return out
}

func (s RoleSet) Names() []string {
	roles := s.Roles()
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = string(r)
	}
	sort.Strings(out)
	return out
}

func (s RoleSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Names())
}

func (s *RoleSet) UnmarshalJSON(b []byte) error {
	var names []string
	if err := json.Unmarshal(b, &names); err != nil {
		return err
	}
	*s = RoleSetFromNames(names...)
	return nil
}

// Principal is the authenticated identity attached to one request.
type Principal struct {
	UserID   string  `json:"userId"`
	Username string  `json:"username"`
	Roles    RoleSet `json:"roles"`
	Enabled  bool    `json:"enabled"`
}

func (p Principal) IsAdmin() bool { return p.Roles.Has(RoleAdmin) }
