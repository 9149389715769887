package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/geocoder89/taskhub/internal/access"
	"github.com/geocoder89/taskhub/internal/apperr"
	"github.com/geocoder89/taskhub/internal/domain/task"
	"github.com/geocoder89/taskhub/internal/domain/user"
	"github.com/geocoder89/taskhub/internal/http/middlewares"
	"github.com/geocoder89/taskhub/internal/service"
	"github.com/geocoder89/taskhub/internal/utils"
)

const adminPageSize = 50

// WebHandler serves the server-rendered pages and their form posts.
// Every mutation answers with a 303 redirect and a flash.
type WebHandler struct {
	auth   *AuthHandler
	users  UserManager
	tasks  TaskManager
	secure bool
	now    func() time.Time
}

func NewWebHandler(auth *AuthHandler, users UserManager, tasks TaskManager, secureCookies bool) *WebHandler {
	return &WebHandler{auth: auth, users: users, tasks: tasks, secure: secureCookies, now: time.Now}
}

type loginForm struct {
	Username string `form:"username" binding:"required"`
	Password string `form:"password" binding:"required"`
}

type registerForm struct {
	Username             string `form:"username" binding:"required,min=5,max=45"`
	Email                string `form:"email" binding:"required,email,max=255"`
	FirstName            string `form:"firstName" binding:"required,max=45"`
	LastName             string `form:"lastName" binding:"required,max=45"`
	Password             string `form:"password" binding:"required,min=8"`
	PasswordConfirmation string `form:"passwordConfirmation" binding:"required"`
}

func (f registerForm) request() SignUpRequest {
	return SignUpRequest{
		Username:             f.Username,
		Email:                f.Email,
		FirstName:            f.FirstName,
		LastName:             f.LastName,
		Password:             f.Password,
		PasswordConfirmation: f.PasswordConfirmation,
	}
}

type profileForm struct {
	Username  string `form:"username"`
	Email     string `form:"email"`
	FirstName string `form:"firstName"`
	LastName  string `form:"lastName"`
}

type passwordForm struct {
	CurrentPassword         string `form:"currentPassword" binding:"required"`
	NewPassword             string `form:"newPassword" binding:"required,min=8"`
	NewPasswordConfirmation string `form:"newPasswordConfirmation" binding:"required"`
}

type selectionForm struct {
	Selected []string `form:"selected"`
}

type taskFormView struct {
	Action string
	Today  string
}

func (h *WebHandler) render(ctx *gin.Context, status int, name, title string, data gin.H) {
	if data == nil {
		data = gin.H{}
	}
	data["Title"] = title
	data["Flash"] = takeFlash(ctx)
	if p, ok := middlewares.PrincipalFromContext(ctx); ok {
		data["Principal"] = p
	}
	ctx.HTML(status, name, data)
}

func (h *WebHandler) redirect(ctx *gin.Context, to string) {
	ctx.Redirect(http.StatusSeeOther, to)
}

func (h *WebHandler) today() string {
	return h.now().UTC().Format(task.DateLayout)
}

func (h *WebHandler) Home(ctx *gin.Context) {
	data := gin.H{}
	if p, ok := middlewares.PrincipalFromContext(ctx); ok {
		data["Landing"] = access.LandingPage(p.Roles)
	}
	h.render(ctx, http.StatusOK, "home.html", "Home", data)
}

func (h *WebHandler) LoginPage(ctx *gin.Context) {
	if p, ok := middlewares.PrincipalFromContext(ctx); ok {
		h.redirect(ctx, access.LandingPage(p.Roles))
		return
	}
	h.render(ctx, http.StatusOK, "login.html", "Log in", gin.H{"Username": ""})
}

// Login sends the user to the landing page computed for this login.
func (h *WebHandler) Login(ctx *gin.Context) {
	var form loginForm
	if msg, ok := BindForm(ctx, &form); !ok {
		setFlash(ctx, "error", msg)
		h.redirect(ctx, access.LoginPage)
		return
	}

	cctx, cancel := requestContext(ctx)
	defer cancel()

	res, err := h.auth.auth.Login(cctx, form.Username, form.Password)
	if err != nil {
		if errors.Is(err, apperr.ErrUnauthenticated) {
			setFlash(ctx, "error", "Invalid username or password.")
		} else {
			flashError(ctx, err)
		}
		h.redirect(ctx, access.LoginPage)
		return
	}

	middlewares.SetAuthCookies(ctx, res.Tokens, h.secure)
	h.redirect(ctx, res.Landing)
}

func (h *WebHandler) Logout(ctx *gin.Context) {
	h.auth.endSession(ctx)
	setFlash(ctx, "success", "You have been logged out.")
	h.redirect(ctx, "/")
}

func (h *WebHandler) RegisterPage(ctx *gin.Context) {
	h.render(ctx, http.StatusOK, "register.html", "Register", gin.H{"Form": registerForm{}})
}

func (h *WebHandler) Register(ctx *gin.Context) {
	var form registerForm
	if msg, ok := BindForm(ctx, &form); !ok {
		setFlash(ctx, "error", msg)
		h.redirect(ctx, "/register")
		return
	}

	cctx, cancel := requestContext(ctx)
	defer cancel()

	if _, err := h.users.Register(cctx, form.request().input()); err != nil {
		flashError(ctx, err)
		h.redirect(ctx, "/register")
		return
	}

	setFlash(ctx, "success", "Account created. You can log in now.")
	h.redirect(ctx, access.LoginPage)
}

func (h *WebHandler) AccessDenied(ctx *gin.Context) {
	h.render(ctx, http.StatusForbidden, "access_denied.html", "Access denied", nil)
}

func (h *WebHandler) Dashboard(ctx *gin.Context) {
	p, ok := middlewares.PrincipalFromContext(ctx)
	if !ok {
		h.redirect(ctx, access.LoginPage)
		return
	}

	cctx, cancel := requestContext(ctx)
	defer cancel()

	u, err := h.users.Get(cctx, p, p.UserID)
	if err != nil {
		h.pageError(ctx, err)
		return
	}

	tasks, err := h.tasks.ListForOwner(cctx, p, p.UserID)
	if err != nil {
		h.pageError(ctx, err)
		return
	}

	h.render(ctx, http.StatusOK, "dashboard.html", "Dashboard", gin.H{
		"User":     u,
		"Tasks":    toTaskResponses(tasks),
		"TaskForm": taskFormView{Action: "/task/create", Today: h.today()},
	})
}

func (h *WebHandler) CreateTask(ctx *gin.Context) {
	p, ok := middlewares.PrincipalFromContext(ctx)
	if !ok {
		h.redirect(ctx, access.LoginPage)
		return
	}
	h.createTaskFor(ctx, p, p.UserID, access.UserDashboard)
}

func (h *WebHandler) createTaskFor(ctx *gin.Context, p access.Principal, ownerID, back string) {
	var req CreateTaskRequest
	if msg, ok := BindForm(ctx, &req); !ok {
		setFlash(ctx, "error", msg)
		h.redirect(ctx, back)
		return
	}

	in, fields := req.input()
	if len(fields) > 0 {
		setFlash(ctx, "error", fmt.Sprintf("%s %s.", fields[0].Field, fields[0].Message))
		h.redirect(ctx, back)
		return
	}

	cctx, cancel := requestContext(ctx)
	defer cancel()

	t, err := h.tasks.Create(cctx, p, ownerID, in)
	if err != nil {
		flashError(ctx, err)
		h.redirect(ctx, back)
		return
	}

	setFlash(ctx, "success", fmt.Sprintf("Task %q created.", t.Name))
	h.redirect(ctx, back)
}

func (h *WebHandler) DeleteTasks(ctx *gin.Context) {
	h.bulk(ctx, "deleted", h.tasks.DeleteMany, access.UserDashboard)
}

func (h *WebHandler) UpdateTaskStatus(ctx *gin.Context) {
	h.bulk(ctx, "updated", h.tasks.ToggleMany, access.UserDashboard)
}

// bulk applies op to the selected tasks. Processing stops at the first
// failure; tasks handled before it stay changed.
func (h *WebHandler) bulk(ctx *gin.Context, verb string, op func(context.Context, access.Principal, []string) (int, error), back string) {
	p, ok := middlewares.PrincipalFromContext(ctx)
	if !ok {
		h.redirect(ctx, access.LoginPage)
		return
	}

	var form selectionForm
	_ = ctx.ShouldBind(&form)
	if len(form.Selected) == 0 {
		setFlash(ctx, "error", "Select at least one task.")
		h.redirect(ctx, back)
		return
	}

	cctx, cancel := requestContext(ctx)
	defer cancel()

	n, err := op(cctx, p, form.Selected)
	if err != nil {
		slog.Default().InfoContext(ctx.Request.Context(), "task.bulk_stopped", "user_id", p.UserID, "done", n, "err", err)
		flashError(ctx, err)
		h.redirect(ctx, back)
		return
	}

	setFlash(ctx, "success", fmt.Sprintf("%d task(s) %s.", n, verb))
	h.redirect(ctx, back)
}

func (h *WebHandler) UpdateInfo(ctx *gin.Context) {
	p, ok := middlewares.PrincipalFromContext(ctx)
	if !ok {
		h.redirect(ctx, access.LoginPage)
		return
	}
	h.updateProfileOf(ctx, p, p.UserID, access.UserDashboard)
}

func (h *WebHandler) updateProfileOf(ctx *gin.Context, p access.Principal, targetID, back string) {
	var form profileForm
	_ = ctx.ShouldBind(&form)

	cctx, cancel := requestContext(ctx)
	defer cancel()

	_, err := h.users.UpdateProfile(cctx, p, targetID, form.update())
	if err != nil {
		flashError(ctx, err)
		h.redirect(ctx, back)
		return
	}

	setFlash(ctx, "success", "Profile updated.")
	h.redirect(ctx, back)
}

// update sends only the fields the form actually carried.
func (f profileForm) update() service.ProfileUpdate {
	var upd service.ProfileUpdate
	if f.Username != "" {
		upd.Username = &f.Username
	}
	if f.Email != "" {
		upd.Email = &f.Email
	}
	if f.FirstName != "" {
		upd.FirstName = &f.FirstName
	}
	if f.LastName != "" {
		upd.LastName = &f.LastName
	}
	return upd
}

func (h *WebHandler) UpdatePassword(ctx *gin.Context) {
	p, ok := middlewares.PrincipalFromContext(ctx)
	if !ok {
		h.redirect(ctx, access.LoginPage)
		return
	}

	var form passwordForm
	if msg, ok := BindForm(ctx, &form); !ok {
		setFlash(ctx, "error", msg)
		h.redirect(ctx, access.UserDashboard)
		return
	}

	cctx, cancel := requestContext(ctx)
	defer cancel()

	err := h.users.UpdatePassword(cctx, p, service.PasswordUpdate{
		Current:      form.CurrentPassword,
		New:          form.NewPassword,
		Confirmation: form.NewPasswordConfirmation,
	})
	if err != nil {
		flashError(ctx, err)
		h.redirect(ctx, access.UserDashboard)
		return
	}

	setFlash(ctx, "success", "Password changed. Other sessions have been signed out.")
	h.redirect(ctx, access.UserDashboard)
}

func (h *WebHandler) AdminDashboard(ctx *gin.Context) {
	p, ok := middlewares.PrincipalFromContext(ctx)
	if !ok {
		h.redirect(ctx, access.LoginPage)
		return
	}

	var after *user.ListCursor
	if raw := ctx.Query("cursor"); raw != "" {
		if c, err := utils.DecodeUserCursor(raw); err == nil {
			after = &user.ListCursor{CreatedAt: c.CreatedAt, ID: c.ID}
		}
	}

	cctx, cancel := requestContext(ctx)
	defer cancel()

	users, next, err := listPage(cctx, h.users, p, after, adminPageSize)
	if err != nil {
		h.pageError(ctx, err)
		return
	}

	rows := make([]UserResponse, 0, len(users))
	for _, u := range users {
		rows = append(rows, toUserResponse(u))
	}

	data := gin.H{"Users": rows}
	if next != nil {
		data["NextCursor"] = *next
	}
	h.render(ctx, http.StatusOK, "admin_dashboard.html", "Admin", data)
}

func (h *WebHandler) AdminUserTasks(ctx *gin.Context) {
	p, ok := middlewares.PrincipalFromContext(ctx)
	if !ok {
		h.redirect(ctx, access.LoginPage)
		return
	}
	ownerID := ctx.Param("id")

	cctx, cancel := requestContext(ctx)
	defer cancel()

	owner, err := h.users.Get(cctx, p, ownerID)
	if err != nil {
		h.pageError(ctx, err)
		return
	}

	tasks, err := h.tasks.ListForOwner(cctx, p, ownerID)
	if err != nil {
		h.pageError(ctx, err)
		return
	}

	h.render(ctx, http.StatusOK, "admin_user_tasks.html", "Tasks of "+owner.Username, gin.H{
		"Owner":    owner,
		"Tasks":    toTaskResponses(tasks),
		"TaskForm": taskFormView{Action: adminTasksPage(ownerID), Today: h.today()},
	})
}

func (h *WebHandler) AdminCreateUser(ctx *gin.Context) {
	p, ok := middlewares.PrincipalFromContext(ctx)
	if !ok {
		h.redirect(ctx, access.LoginPage)
		return
	}

	var form registerForm
	if msg, ok := BindForm(ctx, &form); !ok {
		setFlash(ctx, "error", msg)
		h.redirect(ctx, access.AdminDashboard)
		return
	}

	cctx, cancel := requestContext(ctx)
	defer cancel()

	u, err := h.users.CreateUser(cctx, p, form.request().input())
	if err != nil {
		flashError(ctx, err)
		h.redirect(ctx, access.AdminDashboard)
		return
	}

	setFlash(ctx, "success", fmt.Sprintf("User %s created.", u.Username))
	h.redirect(ctx, access.AdminDashboard)
}

func (h *WebHandler) AdminCreateTask(ctx *gin.Context) {
	p, ok := middlewares.PrincipalFromContext(ctx)
	if !ok {
		h.redirect(ctx, access.LoginPage)
		return
	}
	ownerID := ctx.Param("id")
	h.createTaskFor(ctx, p, ownerID, adminTasksPage(ownerID))
}

func adminTasksPage(ownerID string) string {
	return "/admin/users/" + ownerID + "/tasks"
}

func (h *WebHandler) AdminDeleteTasks(ctx *gin.Context) {
	h.bulk(ctx, "deleted", h.tasks.DeleteMany, adminTasksPage(ctx.Param("id")))
}

func (h *WebHandler) AdminUpdateTaskStatus(ctx *gin.Context) {
	h.bulk(ctx, "updated", h.tasks.ToggleMany, adminTasksPage(ctx.Param("id")))
}

func (h *WebHandler) AdminUpdateInfo(ctx *gin.Context) {
	p, ok := middlewares.PrincipalFromContext(ctx)
	if !ok {
		h.redirect(ctx, access.LoginPage)
		return
	}
	ownerID := ctx.Param("id")
	h.updateProfileOf(ctx, p, ownerID, adminTasksPage(ownerID))
}

func (h *WebHandler) AdminDeleteUser(ctx *gin.Context) {
	p, ok := middlewares.PrincipalFromContext(ctx)
	if !ok {
		h.redirect(ctx, access.LoginPage)
		return
	}

	cctx, cancel := requestContext(ctx)
	defer cancel()

	if err := h.users.Delete(cctx, p, ctx.Param("id")); err != nil {
		flashError(ctx, err)
		h.redirect(ctx, access.AdminDashboard)
		return
	}

	setFlash(ctx, "success", "User deleted.")
	h.redirect(ctx, access.AdminDashboard)
}

// pageError handles failures while rendering a GET page.
func (h *WebHandler) pageError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, apperr.ErrForbidden):
		h.redirect(ctx, access.AccessDeniedPage)
	case errors.Is(err, apperr.ErrNotFound):
		flashError(ctx, err)
		p, _ := middlewares.PrincipalFromContext(ctx)
		h.redirect(ctx, access.LandingPage(p.Roles))
	default:
		slog.Default().ErrorContext(ctx.Request.Context(), "page.failed", "path", ctx.Request.URL.Path, "err", err)
		ctx.String(http.StatusInternalServerError, "Something went wrong. Please try again.")
	}
}
