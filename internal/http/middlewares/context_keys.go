package middlewares

import "github.com/gin-gonic/gin"

const (
	CtxRequestID = "request_id"
	ctxSession   = "auth.session"
	ctxAccess    = "access.outcome"
)

const (
	SessionCookie = "session"
	RefreshCookie = "refresh_token"
)

// abortJSON stops the chain with the same error envelope the handlers use.
func abortJSON(c *gin.Context, status int, code, message string, details any) {
	body := gin.H{
		"code":    code,
		"message": message,
	}
	if id := c.GetString(CtxRequestID); id != "" {
		body["requestId"] = id
	}
	if details != nil {
		body["details"] = details
	}

	c.AbortWithStatusJSON(status, gin.H{"error": body})
}
