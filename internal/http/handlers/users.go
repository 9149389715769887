package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/geocoder89/taskhub/internal/access"
	"github.com/geocoder89/taskhub/internal/domain/user"
	"github.com/geocoder89/taskhub/internal/http/middlewares"
	"github.com/geocoder89/taskhub/internal/service"
	"github.com/geocoder89/taskhub/internal/utils"
)

// UserManager is the user service surface used by the API and the pages.
type UserManager interface {
	Registrar
	CreateUser(ctx context.Context, p access.Principal, in service.RegisterInput) (user.User, error)
	Get(ctx context.Context, p access.Principal, id string) (user.User, error)
	List(ctx context.Context, p access.Principal, after *user.ListCursor, limit int) ([]user.User, error)
	UpdateProfile(ctx context.Context, p access.Principal, targetID string, upd service.ProfileUpdate) (user.User, error)
	UpdatePassword(ctx context.Context, p access.Principal, upd service.PasswordUpdate) error
	Delete(ctx context.Context, p access.Principal, targetID string) error
	SetRoles(ctx context.Context, p access.Principal, targetID string, roleIDs []string) (user.User, error)
	SetEnabled(ctx context.Context, p access.Principal, targetID string, enabled bool) (user.User, error)
}

type UsersHandler struct {
	users UserManager
}

func NewUsersHandler(users UserManager) *UsersHandler {
	return &UsersHandler{users: users}
}

type UpdateProfileRequest struct {
	Username  *string `json:"username" binding:"omitempty,min=5,max=45"`
	Email     *string `json:"email" binding:"omitempty,email,max=255"`
	FirstName *string `json:"firstName" binding:"omitempty,min=1,max=45"`
	LastName  *string `json:"lastName" binding:"omitempty,min=1,max=45"`
}

type UpdatePasswordRequest struct {
	CurrentPassword         string `json:"currentPassword" binding:"required"`
	NewPassword             string `json:"newPassword" binding:"required,min=8"`
	NewPasswordConfirmation string `json:"newPasswordConfirmation" binding:"required"`
}

type SetRolesRequest struct {
	RoleIDs []string `json:"roleIds" binding:"required,min=1"`
}

type SetEnabledRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

type UserListResponse struct {
	Items      []UserResponse `json:"items"`
	NextCursor *string        `json:"nextCursor"`
}

// principalOrAbort returns the caller. The gate has already run, so a
// missing principal only happens on a misrouted handler.
func principalOrAbort(ctx *gin.Context) (access.Principal, bool) {
	p, ok := middlewares.PrincipalFromContext(ctx)
	if !ok {
		RespondUnauthorized(ctx, "unauthorized", "Authentication required")
		return access.Principal{}, false
	}
	return p, true
}

func (h *UsersHandler) Me(ctx *gin.Context) {
	p, ok := principalOrAbort(ctx)
	if !ok {
		return
	}

	cctx, cancel := requestContext(ctx)
	defer cancel()

	u, err := h.users.Get(cctx, p, p.UserID)
	if err != nil {
		RespondServiceError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, toUserResponse(u))
}

func (h *UsersHandler) UpdateProfile(ctx *gin.Context) {
	p, ok := principalOrAbort(ctx)
	if !ok {
		return
	}

	var req UpdateProfileRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := requestContext(ctx)
	defer cancel()

	u, err := h.users.UpdateProfile(cctx, p, ctx.Param("id"), service.ProfileUpdate{
		Username:  req.Username,
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		RespondServiceError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, toUserResponse(u))
}

func (h *UsersHandler) UpdatePassword(ctx *gin.Context) {
	p, ok := principalOrAbort(ctx)
	if !ok {
		return
	}

	var req UpdatePasswordRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := requestContext(ctx)
	defer cancel()

	err := h.users.UpdatePassword(cctx, p, service.PasswordUpdate{
		Current:      req.CurrentPassword,
		New:          req.NewPassword,
		Confirmation: req.NewPasswordConfirmation,
	})
	if err != nil {
		RespondServiceError(ctx, err)
		return
	}

	ctx.Status(http.StatusNoContent)
}

// List serves GET /api/admin/users?limit=&cursor=.
func (h *UsersHandler) List(ctx *gin.Context) {
	p, ok := principalOrAbort(ctx)
	if !ok {
		return
	}

	limit := 20
	if raw := ctx.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 100 {
			RespondBadRequest(ctx, "limit must be between 1 and 100", nil)
			return
		}
		limit = n
	}

	var after *user.ListCursor
	if raw := ctx.Query("cursor"); raw != "" {
		c, err := utils.DecodeUserCursor(raw)
		if err != nil {
			RespondBadRequest(ctx, "invalid cursor", nil)
			return
		}
		after = &user.ListCursor{CreatedAt: c.CreatedAt, ID: c.ID}
	}

	cctx, cancel := requestContext(ctx)
	defer cancel()

	users, next, err := listPage(cctx, h.users, p, after, limit)
	if err != nil {
		RespondServiceError(ctx, err)
		return
	}

	items := make([]UserResponse, 0, len(users))
	for _, u := range users {
		items = append(items, toUserResponse(u))
	}

	RespondJSONWithETag(ctx, http.StatusOK, UserListResponse{Items: items, NextCursor: next})
}

// listPage hands out a cursor whenever the page is full. The page after the
// last one may come back empty.
func listPage(ctx context.Context, users UserManager, p access.Principal, after *user.ListCursor, limit int) ([]user.User, *string, error) {
	rows, err := users.List(ctx, p, after, limit)
	if err != nil {
		return nil, nil, err
	}
	if len(rows) < limit {
		return rows, nil, nil
	}

	last := rows[len(rows)-1]
	cursor, err := utils.EncodeUserCursor(last.CreatedAt, last.ID)
	if err != nil {
		return nil, nil, err
	}
	return rows, &cursor, nil
}

func (h *UsersHandler) Create(ctx *gin.Context) {
	p, ok := principalOrAbort(ctx)
	if !ok {
		return
	}

	var req SignUpRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := requestContext(ctx)
	defer cancel()

	u, err := h.users.CreateUser(cctx, p, req.input())
	if err != nil {
		RespondServiceError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, toUserResponse(u))
}

func (h *UsersHandler) Get(ctx *gin.Context) {
	p, ok := principalOrAbort(ctx)
	if !ok {
		return
	}

	cctx, cancel := requestContext(ctx)
	defer cancel()

	u, err := h.users.Get(cctx, p, ctx.Param("id"))
	if err != nil {
		RespondServiceError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, toUserResponse(u))
}

func (h *UsersHandler) Delete(ctx *gin.Context) {
	p, ok := principalOrAbort(ctx)
	if !ok {
		return
	}

	cctx, cancel := requestContext(ctx)
	defer cancel()

	if err := h.users.Delete(cctx, p, ctx.Param("id")); err != nil {
		RespondServiceError(ctx, err)
		return
	}

	ctx.Status(http.StatusNoContent)
}

func (h *UsersHandler) SetRoles(ctx *gin.Context) {
	p, ok := principalOrAbort(ctx)
	if !ok {
		return
	}

	var req SetRolesRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := requestContext(ctx)
	defer cancel()

	u, err := h.users.SetRoles(cctx, p, ctx.Param("id"), req.RoleIDs)
	if err != nil {
		RespondServiceError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, toUserResponse(u))
}

func (h *UsersHandler) SetEnabled(ctx *gin.Context) {
	p, ok := principalOrAbort(ctx)
	if !ok {
		return
	}

	var req SetEnabledRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := requestContext(ctx)
	defer cancel()

	u, err := h.users.SetEnabled(cctx, p, ctx.Param("id"), *req.Enabled)
	if err != nil {
		RespondServiceError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, toUserResponse(u))
}
