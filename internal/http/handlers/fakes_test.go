package handlers_test

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/geocoder89/taskhub/internal/access"
	"github.com/geocoder89/taskhub/internal/domain/task"
	"github.com/geocoder89/taskhub/internal/domain/user"
	"github.com/geocoder89/taskhub/internal/http/middlewares"
	"github.com/geocoder89/taskhub/internal/service"
)

// Make sure Gin does not spam the console during the test

func init() {
	gin.SetMode(gin.TestMode)
}

var (
	alice = access.Principal{UserID: "u-alice", Username: "alice", Roles: access.NewRoleSet(access.RoleUser), Enabled: true}
	root  = access.Principal{UserID: "u-root", Username: "root", Roles: access.NewRoleSet(access.RoleAdmin), Enabled: true}
)

// as stands in for the auth middleware.
func as(p access.Principal) gin.HandlerFunc {
	return func(c *gin.Context) {
		middlewares.SetSession(c, service.Session{Principal: p, TokenID: "jti-" + p.UserID, ExpiresAt: time.Now().Add(time.Hour)})
		c.Next()
	}
}

// small helper function which returns the gin engine to mount one handler per test

func setupRouter(method, path string, h gin.HandlerFunc, mw ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(mw...)
	r.Handle(method, path, h)

	return r
}

type fakeTasks struct {
	createFn     func(ctx context.Context, p access.Principal, ownerID string, in task.CreateInput) (task.Task, error)
	listFn       func(ctx context.Context, p access.Principal, ownerID string) ([]task.Task, error)
	toggleFn     func(ctx context.Context, p access.Principal, taskID string) (task.Task, error)
	deleteFn     func(ctx context.Context, p access.Principal, taskID string) error
	toggleManyFn func(ctx context.Context, p access.Principal, ids []string) (int, error)
	deleteManyFn func(ctx context.Context, p access.Principal, ids []string) (int, error)
}

func (f *fakeTasks) Create(ctx context.Context, p access.Principal, ownerID string, in task.CreateInput) (task.Task, error) {
	if f.createFn != nil {
		return f.createFn(ctx, p, ownerID, in)
	}
	return task.Task{}, nil
}

func (f *fakeTasks) ListForOwner(ctx context.Context, p access.Principal, ownerID string) ([]task.Task, error) {
	if f.listFn != nil {
		return f.listFn(ctx, p, ownerID)
	}
	return nil, nil
}

func (f *fakeTasks) ToggleStatus(ctx context.Context, p access.Principal, taskID string) (task.Task, error) {
	if f.toggleFn != nil {
		return f.toggleFn(ctx, p, taskID)
	}
	return task.Task{}, nil
}

func (f *fakeTasks) Delete(ctx context.Context, p access.Principal, taskID string) error {
	if f.deleteFn != nil {
		return f.deleteFn(ctx, p, taskID)
	}
	return nil
}

func (f *fakeTasks) ToggleMany(ctx context.Context, p access.Principal, ids []string) (int, error) {
	if f.toggleManyFn != nil {
		return f.toggleManyFn(ctx, p, ids)
	}
	return len(ids), nil
}

func (f *fakeTasks) DeleteMany(ctx context.Context, p access.Principal, ids []string) (int, error) {
	if f.deleteManyFn != nil {
		return f.deleteManyFn(ctx, p, ids)
	}
	return len(ids), nil
}

type fakeUsers struct {
	registerFn       func(ctx context.Context, in service.RegisterInput) (user.User, error)
	createFn         func(ctx context.Context, p access.Principal, in service.RegisterInput) (user.User, error)
	getFn            func(ctx context.Context, p access.Principal, id string) (user.User, error)
	listFn           func(ctx context.Context, p access.Principal, after *user.ListCursor, limit int) ([]user.User, error)
	updateProfileFn  func(ctx context.Context, p access.Principal, id string, upd service.ProfileUpdate) (user.User, error)
	updatePasswordFn func(ctx context.Context, p access.Principal, upd service.PasswordUpdate) error
	deleteFn         func(ctx context.Context, p access.Principal, id string) error
	setRolesFn       func(ctx context.Context, p access.Principal, id string, roleIDs []string) (user.User, error)
	setEnabledFn     func(ctx context.Context, p access.Principal, id string, enabled bool) (user.User, error)
}

func (f *fakeUsers) Register(ctx context.Context, in service.RegisterInput) (user.User, error) {
	if f.registerFn != nil {
		return f.registerFn(ctx, in)
	}
	return user.User{}, nil
}

func (f *fakeUsers) CreateUser(ctx context.Context, p access.Principal, in service.RegisterInput) (user.User, error) {
	if f.createFn != nil {
		return f.createFn(ctx, p, in)
	}
	return user.User{}, nil
}

func (f *fakeUsers) Get(ctx context.Context, p access.Principal, id string) (user.User, error) {
	if f.getFn != nil {
		return f.getFn(ctx, p, id)
	}
	return user.User{ID: id}, nil
}

func (f *fakeUsers) List(ctx context.Context, p access.Principal, after *user.ListCursor, limit int) ([]user.User, error) {
	if f.listFn != nil {
		return f.listFn(ctx, p, after, limit)
	}
	return nil, nil
}

func (f *fakeUsers) UpdateProfile(ctx context.Context, p access.Principal, id string, upd service.ProfileUpdate) (user.User, error) {
	if f.updateProfileFn != nil {
		return f.updateProfileFn(ctx, p, id, upd)
	}
	return user.User{ID: id}, nil
}

func (f *fakeUsers) UpdatePassword(ctx context.Context, p access.Principal, upd service.PasswordUpdate) error {
	if f.updatePasswordFn != nil {
		return f.updatePasswordFn(ctx, p, upd)
	}
	return nil
}

func (f *fakeUsers) Delete(ctx context.Context, p access.Principal, id string) error {
	if f.deleteFn != nil {
		return f.deleteFn(ctx, p, id)
	}
	return nil
}

func (f *fakeUsers) SetRoles(ctx context.Context, p access.Principal, id string, roleIDs []string) (user.User, error) {
	if f.setRolesFn != nil {
		return f.setRolesFn(ctx, p, id, roleIDs)
	}
	return user.User{ID: id}, nil
}

func (f *fakeUsers) SetEnabled(ctx context.Context, p access.Principal, id string, enabled bool) (user.User, error) {
	if f.setEnabledFn != nil {
		return f.setEnabledFn(ctx, p, id, enabled)
	}
	return user.User{ID: id, Enabled: enabled}, nil
}

type fakeAuth struct {
	loginFn   func(ctx context.Context, username, password string) (service.LoginResult, error)
	refreshFn func(ctx context.Context, raw string) (service.Tokens, error)
	logoutFn  func(ctx context.Context, rawRefresh, jti string, exp time.Time) error
}

func (f *fakeAuth) Login(ctx context.Context, username, password string) (service.LoginResult, error) {
	if f.loginFn != nil {
		return f.loginFn(ctx, username, password)
	}
	return service.LoginResult{}, nil
}

func (f *fakeAuth) Refresh(ctx context.Context, raw string) (service.Tokens, error) {
	if f.refreshFn != nil {
		return f.refreshFn(ctx, raw)
	}
	return service.Tokens{}, nil
}

func (f *fakeAuth) Logout(ctx context.Context, rawRefresh, jti string, exp time.Time) error {
	if f.logoutFn != nil {
		return f.logoutFn(ctx, rawRefresh, jti, exp)
	}
	return nil
}
