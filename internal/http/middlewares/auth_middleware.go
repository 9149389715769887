package middlewares

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/geocoder89/taskhub/internal/access"
	"github.com/geocoder89/taskhub/internal/actorctx"
	"github.com/geocoder89/taskhub/internal/service"
)

// Keep this small interface so tests can fake it easily.
type Authenticator interface {
	Authenticate(ctx context.Context, raw string) (service.Session, error)
}

type AuthMiddleware struct {
	auth Authenticator
}

func NewAuthMiddleware(auth Authenticator) *AuthMiddleware {
	return &AuthMiddleware{auth: auth}
}

// Identify resolves the caller from a Bearer header or the session cookie.
// It never rejects: the route gate decides what an anonymous caller may do.
func (m *AuthMiddleware) Identify() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, fromCookie := bearerToken(c)
		if raw == "" {
			c.Next()
			return
		}

		sess, err := m.auth.Authenticate(c.Request.Context(), raw)
		if err != nil {
			if fromCookie {
				ClearAuthCookies(c)
			}
			c.Next()
			return
		}

		SetSession(c, sess)
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer ")), false
	}

	if v, err := c.Cookie(SessionCookie); err == nil && v != "" {
		return v, true
	}
	return "", false
}

// SetSession attaches a verified session to the request.
func SetSession(c *gin.Context, sess service.Session) {
	c.Set(ctxSession, sess)
	c.Request = c.Request.WithContext(actorctx.WithPrincipal(c.Request.Context(), sess.Principal))
}

// Optional helpers so handlers don't need to know the magic keys.

func SessionFromContext(c *gin.Context) (service.Session, bool) {
	v, ok := c.Get(ctxSession)
	if !ok {
		return service.Session{}, false
	}
	s, ok := v.(service.Session)
	return s, ok
}

func PrincipalFromContext(c *gin.Context) (access.Principal, bool) {
	s, ok := SessionFromContext(c)
	if !ok || s.Principal.UserID == "" {
		return access.Principal{}, false
	}
	return s.Principal, true
}

func UserIDFromContext(c *gin.Context) (string, bool) {
	p, ok := PrincipalFromContext(c)
	return p.UserID, ok
}

// SetAuthCookies stores an access/refresh pair for browser sessions.
func SetAuthCookies(c *gin.Context, tokens service.Tokens, secure bool) {
	c.SetSameSite(httpSameSiteLax)
	c.SetCookie(SessionCookie, tokens.Access.Raw, maxAge(tokens.Access.ExpiresAt), "/", "", secure, true)
	c.SetCookie(RefreshCookie, tokens.Refresh.Raw, maxAge(tokens.Refresh.ExpiresAt), "/", "", secure, true)
}

func ClearAuthCookies(c *gin.Context) {
	c.SetSameSite(httpSameSiteLax)
	c.SetCookie(SessionCookie, "", -1, "/", "", false, true)
	c.SetCookie(RefreshCookie, "", -1, "/", "", false, true)
}
