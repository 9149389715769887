package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/geocoder89/taskhub/internal/access"
	"github.com/geocoder89/taskhub/internal/apperr"
	"github.com/geocoder89/taskhub/internal/domain/role"
	"github.com/geocoder89/taskhub/internal/domain/user"
	"github.com/geocoder89/taskhub/internal/notifications"
	"github.com/geocoder89/taskhub/internal/security"
)

type RegisterInput struct {
	Username             string
	Email                string
	FirstName            string
	LastName             string
	Password             string
	PasswordConfirmation string
}

// ProfileUpdate carries a partial update; nil fields are left alone.
type ProfileUpdate struct {
	Username  *string
	Email     *string
	FirstName *string
	LastName  *string
}

type PasswordUpdate struct {
	Current      string
	New          string
	Confirmation string
}

type UserService struct {
	users      UserStore
	roles      *RoleService
	hasher     security.Hasher
	principals PrincipalCache
	notifier   notifications.Notifier
	now        func() time.Time
}

func NewUserService(users UserStore, roles *RoleService, hasher security.Hasher, principals PrincipalCache) *UserService {
	return &UserService{
		users:      users,
		roles:      roles,
		hasher:     hasher,
		principals: principals,
		now:        time.Now,
	}
}

// WithNotifier sends account notices through n. Delivery is best effort.
func (s *UserService) WithNotifier(n notifications.Notifier) *UserService {
	s.notifier = n
	return s
}

func (s *UserService) notify(ctx context.Context, kind notifications.Kind, u user.User) {
	if s.notifier == nil {
		return
	}

	err := s.notifier.SendAccountNotice(ctx, notifications.AccountNotice{
		Kind:     kind,
		UserID:   u.ID,
		Username: u.Username,
		Email:    u.Email,
	})
	if err != nil {
		slog.Default().WarnContext(ctx, "notification.failed", "kind", string(kind), "user_id", u.ID, "err", err)
	}
}

// Register creates a self-service account with the default role.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (user.User, error) {
	def, err := s.roles.DefaultRole(ctx)
	if err != nil {
		return user.User{}, err
	}
	return s.create(ctx, in, []role.Role{def})
}

// CreateUser is the admin path for adding an account.
func (s *UserService) CreateUser(ctx context.Context, p access.Principal, in RegisterInput) (user.User, error) {
	if err := access.RequireAdmin(p); err != nil {
		return user.User{}, err
	}

	u, err := s.Register(ctx, in)
	if err != nil {
		return user.User{}, err
	}

	slog.Default().InfoContext(ctx, "user.created_by_admin", "user_id", u.ID, "admin_id", p.UserID)
	return u, nil
}

// EnsureAdmin provisions the bootstrap administrator when no account with
// that username exists yet.
func (s *UserService) EnsureAdmin(ctx context.Context, username, email, password string) (user.User, bool, error) {
	existing, err := s.users.GetByUsername(ctx, strings.TrimSpace(username))
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return user.User{}, false, err
	}

	def, err := s.roles.DefaultRole(ctx)
	if err != nil {
		return user.User{}, false, err
	}
	admin, err := s.roles.required(ctx, access.RoleAdmin)
	if err != nil {
		return user.User{}, false, err
	}

	u, err := s.create(ctx, RegisterInput{
		Username:             username,
		Email:                email,
		FirstName:            "Admin",
		LastName:             "User",
		Password:             password,
		PasswordConfirmation: password,
	}, []role.Role{def, admin})
	if err != nil {
		return user.User{}, false, err
	}
	return u, true, nil
}

func (s *UserService) create(ctx context.Context, in RegisterInput, roles []role.Role) (user.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = normalizeEmail(in.Email)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)

	ve := &apperr.ValidationError{}
	addIf(ve, "username", user.CheckUsername(in.Username))
	addIf(ve, "email", user.CheckEmail(in.Email))
	addIf(ve, "firstName", user.CheckName("First name", in.FirstName))
	addIf(ve, "lastName", user.CheckName("Last name", in.LastName))
	if in.Password == "" {
		ve.Add("password", "Password is required.")
	}
	if in.Password != in.PasswordConfirmation {
		ve.Add("passwordConfirmation", "Passwords do not match.")
	}
	if err := ve.OrNil(); err != nil {
		return user.User{}, err
	}

	if err := s.checkUnique(ctx, in.Username, in.Email); err != nil {
		return user.User{}, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return user.User{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	u := user.User{
		ID:           uuid.NewString(),
		Username:     in.Username,
		Email:        in.Email,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		PasswordHash: hash,
		Enabled:      true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	roleIDs := make([]string, len(roles))
	for i, r := range roles {
		roleIDs[i] = r.ID
	}

	created, err := s.users.Create(ctx, u, roleIDs)
	if err != nil {
		return user.User{}, err
	}

	slog.Default().InfoContext(ctx, "user.registered", "user_id", created.ID, "username", created.Username)
	s.notify(ctx, notifications.KindWelcome, created)
	return created, nil
}

func (s *UserService) checkUnique(ctx context.Context, username, email string) error {
	if username != "" {
		taken, err := s.users.ExistsByUsername(ctx, username)
		if err != nil {
			return fmt.Errorf("check username: %w", err)
		}
		if taken {
			return user.ErrUsernameTaken
		}
	}
	if email != "" {
		taken, err := s.users.ExistsByEmail(ctx, email)
		if err != nil {
			return fmt.Errorf("check email: %w", err)
		}
		if taken {
			return user.ErrEmailTaken
		}
	}
	return nil
}

func (s *UserService) Get(ctx context.Context, p access.Principal, id string) (user.User, error) {
	if err := access.CanActOnUser(p, id); err != nil {
		return user.User{}, err
	}
	return s.users.GetByID(ctx, id)
}

// List pages through all users in creation order. Admin only.
func (s *UserService) List(ctx context.Context, p access.Principal, after *user.ListCursor, limit int) ([]user.User, error) {
	if err := access.RequireAdmin(p); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.users.List(ctx, after, limit)
}

// UpdateProfile applies only the fields that are set and differ from the
// stored values.
func (s *UserService) UpdateProfile(ctx context.Context, p access.Principal, targetID string, upd ProfileUpdate) (user.User, error) {
	if err := access.CanActOnUser(p, targetID); err != nil {
		return user.User{}, err
	}

	u, err := s.users.GetByID(ctx, targetID)
	if err != nil {
		return user.User{}, err
	}

	ve := &apperr.ValidationError{}
	changed := false
	var newUsername, newEmail string

	if upd.Username != nil {
		v := strings.TrimSpace(*upd.Username)
		if msg := user.CheckUsername(v); msg != "" {
			ve.Add("username", msg)
		} else if v != u.Username {
			u.Username, newUsername, changed = v, v, true
		}
	}
	if upd.Email != nil {
		v := normalizeEmail(*upd.Email)
		if msg := user.CheckEmail(v); msg != "" {
			ve.Add("email", msg)
		} else if v != u.Email {
			u.Email, newEmail, changed = v, v, true
		}
	}
	if upd.FirstName != nil {
		v := strings.TrimSpace(*upd.FirstName)
		if msg := user.CheckName("First name", v); msg != "" {
			ve.Add("firstName", msg)
		} else if v != u.FirstName {
			u.FirstName, changed = v, true
		}
	}
	if upd.LastName != nil {
		v := strings.TrimSpace(*upd.LastName)
		if msg := user.CheckName("Last name", v); msg != "" {
			ve.Add("lastName", msg)
		} else if v != u.LastName {
			u.LastName, changed = v, true
		}
	}

	if err := ve.OrNil(); err != nil {
		return user.User{}, err
	}
	if !changed {
		return u, nil
	}

	if err := s.checkUnique(ctx, newUsername, newEmail); err != nil {
		return user.User{}, err
	}

	u.UpdatedAt = s.now().UTC()
	updated, err := s.users.Update(ctx, u)
	if err != nil {
		return user.User{}, err
	}

	s.principals.Invalidate(ctx, targetID)
	return updated, nil
}

// UpdatePassword changes the principal's own password and ends their other sessions.
func (s *UserService) UpdatePassword(ctx context.Context, p access.Principal, upd PasswordUpdate) error {
	ve := &apperr.ValidationError{}
	if upd.New == "" {
		ve.Add("newPassword", "New password is required.")
	}
	if upd.New != upd.Confirmation {
		ve.Add("passwordConfirmation", "Passwords do not match.")
	}
	if err := ve.OrNil(); err != nil {
		return err
	}

	u, err := s.users.GetByID(ctx, p.UserID)
	if err != nil {
		return err
	}
	if !s.hasher.Verify(upd.Current, u.PasswordHash) {
		return apperr.Invalid("currentPassword", "Current password is incorrect.")
	}

	hash, err := s.hasher.Hash(upd.New)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	u.PasswordHash = hash
	u.UpdatedAt = s.now().UTC()
	if _, err := s.users.UpdateEndingSessions(ctx, u); err != nil {
		return err
	}

	slog.Default().InfoContext(ctx, "user.password_changed", "user_id", u.ID)
	s.notify(ctx, notifications.KindPasswordChanged, u)
	return nil
}

// Delete removes a user and everything they own. Admin only.
func (s *UserService) Delete(ctx context.Context, p access.Principal, targetID string) error {
	if err := access.RequireAdmin(p); err != nil {
		return err
	}

	if err := s.users.Delete(ctx, targetID); err != nil {
		return err
	}

	s.principals.Invalidate(ctx, targetID)
	slog.Default().InfoContext(ctx, "user.deleted", "user_id", targetID, "admin_id", p.UserID)
	return nil
}

// SetRoles replaces a user's role set. Admin only; the set must not be empty.
func (s *UserService) SetRoles(ctx context.Context, p access.Principal, targetID string, roleIDs []string) (user.User, error) {
	if err := access.RequireAdmin(p); err != nil {
		return user.User{}, err
	}
	if len(roleIDs) == 0 {
		return user.User{}, apperr.Invalid("roleIds", "At least one role is required.")
	}

	seen := make(map[string]struct{}, len(roleIDs))
	ids := make([]string, 0, len(roleIDs))
	for _, id := range roleIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		if _, err := s.roles.FindByID(ctx, id); err != nil {
			return user.User{}, err
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	if err := s.users.SetRoles(ctx, targetID, ids); err != nil {
		return user.User{}, err
	}

	s.principals.Invalidate(ctx, targetID)
	slog.Default().InfoContext(ctx, "user.roles_changed", "user_id", targetID, "admin_id", p.UserID)
	return s.users.GetByID(ctx, targetID)
}

// SetEnabled enables or disables an account. Disabling ends its sessions.
func (s *UserService) SetEnabled(ctx context.Context, p access.Principal, targetID string, enabled bool) (user.User, error) {
	if err := access.RequireAdmin(p); err != nil {
		return user.User{}, err
	}

	u, err := s.users.GetByID(ctx, targetID)
	if err != nil {
		return user.User{}, err
	}
	if u.Enabled == enabled {
		return u, nil
	}

	u.Enabled = enabled
	u.UpdatedAt = s.now().UTC()
	write := s.users.Update
	if !enabled {
		write = s.users.UpdateEndingSessions
	}
	updated, err := write(ctx, u)
	if err != nil {
		return user.User{}, err
	}

	s.principals.Invalidate(ctx, targetID)
	slog.Default().InfoContext(ctx, "user.enabled_changed", "user_id", targetID, "enabled", enabled, "admin_id", p.UserID)
	if !enabled {
		s.notify(ctx, notifications.KindAccountDisabled, updated)
	}
	return updated, nil
}

func addIf(ve *apperr.ValidationError, field, msg string) {
	if msg != "" {
		ve.Add(field, msg)
	}
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
