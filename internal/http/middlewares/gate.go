package middlewares

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/geocoder89/taskhub/internal/access"
	"github.com/geocoder89/taskhub/internal/observability"
)

// Gate applies the access policy to every request. HTML routes are
// redirected; API routes get a JSON error carrying the destination.
func Gate(policy *access.Policy, prom *observability.Prom) gin.HandlerFunc {
	return func(c *gin.Context) {
		var principal *access.Principal
		if p, ok := PrincipalFromContext(c); ok {
			principal = &p
		}

		path := c.Request.URL.Path
		d := policy.Decide(principal, path)

		c.Set(ctxAccess, d.Outcome.String())
		if prom != nil {
			prom.ObserveAccess(d.Outcome.String(), d.Pattern)
		}

		if d.Outcome == access.Authorized {
			c.Next()
			return
		}

		attrs := []any{"path", path, "outcome", d.Outcome.String(), "rule", d.Pattern}
		if principal != nil {
			attrs = append(attrs, "user_id", principal.UserID)
		}
		slog.Default().InfoContext(c.Request.Context(), "access.denied", attrs...)

		if access.IsAPI(path) {
			status, code, msg := http.StatusUnauthorized, "unauthorized", "Authentication required"
			if d.Outcome == access.Denied {
				status, code, msg = http.StatusForbidden, "forbidden", "You do not have access to this resource"
			}

			abortJSON(c, status, code, msg, gin.H{"redirect": d.Destination})
			return
		}

		c.Redirect(http.StatusSeeOther, d.Destination)
		c.Abort()
	}
}
