package middlewares

import (
	"github.com/gin-gonic/gin"

	"github.com/geocoder89/taskhub/internal/access"
)

const (
	apiCSP = "default-src 'none'; frame-ancestors 'none'"
	// Server-rendered pages load their own stylesheet and post forms to self.
	pageCSP = "default-src 'self'; base-uri 'none'; frame-ancestors 'none'; object-src 'none'; form-action 'self'; style-src 'self' 'unsafe-inline'"
)

func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "same-origin")
		c.Header("X-XSS-Protection", "0")
		if access.IsAPI(c.Request.URL.Path) {
			c.Header("Content-Security-Policy", apiCSP)
		} else {
			c.Header("Content-Security-Policy", pageCSP)
		}
		c.Next()
	}
}
