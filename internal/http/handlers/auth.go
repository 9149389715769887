package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/geocoder89/taskhub/internal/domain/user"
	"github.com/geocoder89/taskhub/internal/http/middlewares"
	"github.com/geocoder89/taskhub/internal/service"
)

// AuthFlows is the part of the auth service the handlers drive.
type AuthFlows interface {
	Login(ctx context.Context, username, password string) (service.LoginResult, error)
	Refresh(ctx context.Context, raw string) (service.Tokens, error)
	Logout(ctx context.Context, rawRefresh, accessJTI string, accessExp time.Time) error
}

type Registrar interface {
	Register(ctx context.Context, in service.RegisterInput) (user.User, error)
}

type AuthHandler struct {
	auth   AuthFlows
	users  Registrar
	secure bool
}

func NewAuthHandler(auth AuthFlows, users Registrar, secureCookies bool) *AuthHandler {
	return &AuthHandler{auth: auth, users: users, secure: secureCookies}
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type SignUpRequest struct {
	Username             string `json:"username" binding:"required,min=5,max=45"`
	Email                string `json:"email" binding:"required,email,max=255"`
	FirstName            string `json:"firstName" binding:"required,max=45"`
	LastName             string `json:"lastName" binding:"required,max=45"`
	Password             string `json:"password" binding:"required,min=8"`
	PasswordConfirmation string `json:"passwordConfirmation" binding:"required"`
}

func (r SignUpRequest) input() service.RegisterInput {
	return service.RegisterInput{
		Username:             r.Username,
		Email:                r.Email,
		FirstName:            r.FirstName,
		LastName:             r.LastName,
		Password:             r.Password,
		PasswordConfirmation: r.PasswordConfirmation,
	}
}

type tokenResponse struct {
	AccessToken string    `json:"accessToken"`
	ExpiresAt   time.Time `json:"expiresAt"`
	Landing     string    `json:"landing,omitempty"`
	Roles       []string  `json:"roles,omitempty"`
}

func (h *AuthHandler) SignUp(ctx *gin.Context) {
	var req SignUpRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := requestContext(ctx)
	defer cancel()

	u, err := h.users.Register(cctx, req.input())
	if err != nil {
		RespondServiceError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, toUserResponse(u))
}

func (h *AuthHandler) Login(ctx *gin.Context) {
	var req LoginRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := requestContext(ctx)
	defer cancel()

	res, err := h.auth.Login(cctx, req.Username, req.Password)
	if err != nil {
		RespondServiceError(ctx, err)
		return
	}

	middlewares.SetAuthCookies(ctx, res.Tokens, h.secure)

	ctx.JSON(http.StatusOK, tokenResponse{
		AccessToken: res.Tokens.Access.Raw,
		ExpiresAt:   res.Tokens.Access.ExpiresAt,
		Landing:     res.Landing,
		Roles:       res.Principal.Roles.Names(),
	})
}

// Refresh rotates the refresh token held in the cookie.
func (h *AuthHandler) Refresh(ctx *gin.Context) {
	raw, err := ctx.Cookie(middlewares.RefreshCookie)
	if err != nil || raw == "" {
		RespondUnauthorized(ctx, "no_refresh", "Missing refresh token")
		return
	}

	cctx, cancel := requestContext(ctx)
	defer cancel()

	tokens, err := h.auth.Refresh(cctx, raw)
	if err != nil {
		middlewares.ClearAuthCookies(ctx)
		RespondServiceError(ctx, err)
		return
	}

	middlewares.SetAuthCookies(ctx, tokens, h.secure)

	ctx.JSON(http.StatusOK, tokenResponse{
		AccessToken: tokens.Access.Raw,
		ExpiresAt:   tokens.Access.ExpiresAt,
	})
}

func (h *AuthHandler) Logout(ctx *gin.Context) {
	h.endSession(ctx)
	ctx.Status(http.StatusNoContent)
}

// endSession revokes whatever the caller presented and always clears the
// cookies. Revocation failures are logged, never surfaced.
func (h *AuthHandler) endSession(ctx *gin.Context) {
	raw, _ := ctx.Cookie(middlewares.RefreshCookie)

	var jti string
	var exp time.Time
	if sess, ok := middlewares.SessionFromContext(ctx); ok {
		jti, exp = sess.TokenID, sess.ExpiresAt
	}

	if raw != "" || jti != "" {
		cctx, cancel := requestContext(ctx)
		defer cancel()

		if err := h.auth.Logout(cctx, raw, jti, exp); err != nil {
			slog.Default().WarnContext(ctx.Request.Context(), "auth.logout_incomplete", "err", err)
		}
	}

	middlewares.ClearAuthCookies(ctx)
}
