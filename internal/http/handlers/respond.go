package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/geocoder89/taskhub/internal/apperr"
)

type APIError struct {
	Code      string      `json:"code"`
	Message   string      `json:"message"`
	RequestID string      `json:"requestId,omitempty"`
	Details   interface{} `json:"details,omitempty"`
}

func requestIDFrom(ctx *gin.Context) string {
	v, ok := ctx.Get("request_id")

	if ok {
		s, ok := v.(string)
		if ok && s != "" {
			return s
		}
	}

	// fallback header
	return ctx.GetHeader("X-Request-Id")
}

func RespondError(ctx *gin.Context, status int, code, message string, details interface{}) {
	ctx.JSON(status, gin.H{
		"error": APIError{
			Code:      code,
			Message:   message,
			RequestID: requestIDFrom(ctx),
			Details:   details,
		},
	})
}

func RespondBadRequest(ctx *gin.Context, message string, details interface{}) {
	RespondError(ctx, http.StatusBadRequest, "invalid_request", message, details)
}

func RespondUnauthorized(ctx *gin.Context, code, message string) {
	RespondError(ctx, http.StatusUnauthorized, code, message, nil)
}

func RespondForbidden(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusForbidden, "forbidden", message, nil)
}

func RespondNotFound(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusNotFound, "not_found", message, nil)
}

func RespondInternal(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusInternalServerError, "internal_error", message, nil)
}

func RespondConflict(ctx *gin.Context, code, message string) {
	RespondError(ctx, http.StatusConflict, code, message, nil)
}

// RespondServiceError maps a service failure kind to its status code.
// Unclassified errors are logged and reported as internal.
func RespondServiceError(ctx *gin.Context, err error) {
	var ve *apperr.ValidationError

	switch {
	case errors.As(err, &ve):
		RespondBadRequest(ctx, "Validation failed", gin.H{"fields": ve.Fields})
	case errors.Is(err, apperr.ErrValidation):
		RespondBadRequest(ctx, apperr.Message(err, "Validation failed"), nil)
	case errors.Is(err, apperr.ErrConflict):
		RespondConflict(ctx, "conflict", apperr.Message(err, "Resource already exists"))
	case errors.Is(err, apperr.ErrNotFound):
		RespondNotFound(ctx, apperr.Message(err, "Resource not found"))
	case errors.Is(err, apperr.ErrForbidden):
		RespondForbidden(ctx, apperr.Message(err, "Forbidden"))
	case errors.Is(err, apperr.ErrUnauthenticated):
		RespondUnauthorized(ctx, "unauthorized", apperr.Message(err, "Authentication required"))
	default:
		slog.Default().ErrorContext(ctx.Request.Context(), "request.failed",
			"path", ctx.Request.URL.Path,
			"err", err,
		)
		RespondInternal(ctx, "Something went wrong")
	}
}
