package user

import (
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/geocoder89/taskhub/internal/access"
	"github.com/geocoder89/taskhub/internal/apperr"
	"github.com/geocoder89/taskhub/internal/domain/role"
)

type User struct {
	ID           string      `json:"id"`
	Username     string      `json:"username"`
	Email        string      `json:"email"`
	FirstName    string      `json:"firstName"`
	LastName     string      `json:"lastName"`
	PasswordHash string      `json:"-"` // never expose hash in JSON
	Enabled      bool        `json:"enabled"`
	Roles        []role.Role `json:"roles"`
	CreatedAt    time.Time   `json:"createdAt"`
	UpdatedAt    time.Time   `json:"updatedAt"`
}

var (
	ErrNotFound      = apperr.New(apperr.ErrNotFound, "user not found")
	ErrUsernameTaken = apperr.New(apperr.ErrConflict, "username is already taken")
	ErrEmailTaken    = apperr.New(apperr.ErrConflict, "email is already registered")
)

const (
	MinUsernameLength = 5
	MaxUsernameLength = 45
	MaxNameLength     = 45
	MaxEmailLength    = 255
)

// CheckUsername returns a user-facing problem with a trimmed username, or "".
func CheckUsername(v string) string {
	n := utf8.RuneCountInString(v)
	switch {
	case n == 0:
		return "Username is required."
	case n < MinUsernameLength || n > MaxUsernameLength:
		return fmt.Sprintf("Username must be between %d and %d characters.", MinUsernameLength, MaxUsernameLength)
	}
	return ""
}

func CheckEmail(v string) string {
	switch {
	case v == "":
		return "Email is required."
	case utf8.RuneCountInString(v) > MaxEmailLength:
		return fmt.Sprintf("Email must be at most %d characters.", MaxEmailLength)
	}
	return ""
}

// CheckName validates a first or last name; label names the field in the message.
func CheckName(label, v string) string {
	switch {
	case v == "":
		return label + " is required."
	case utf8.RuneCountInString(v) > MaxNameLength:
		return fmt.Sprintf("%s must be at most %d characters.", label, MaxNameLength)
	}
	return ""
}

func (u User) RoleSet() access.RoleSet { return role.Set(u.Roles) }

// Principal snapshots the identity used to authorize one request.
func (u User) Principal() access.Principal {
	return access.Principal{
		UserID:   u.ID,
		Username: u.Username,
		Roles:    u.RoleSet(),
		Enabled:  u.Enabled,
	}
}

func (u User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	default:
		return u.FirstName + " " + u.LastName
	}
}

// ListCursor is the keyset position for admin user listings.
type ListCursor struct {
	CreatedAt time.Time
	ID        string
}
