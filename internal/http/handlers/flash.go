package handlers

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/geocoder89/taskhub/internal/apperr"
)

const flashCookie = "flash"

type Flash struct {
	Kind    string
	Message string
}

func setFlash(ctx *gin.Context, kind, message string) {
	ctx.SetCookie(flashCookie, kind+"|"+message, 60, "/", "", false, true)
}

// takeFlash reads the pending flash and clears it.
func takeFlash(ctx *gin.Context) *Flash {
	raw, err := ctx.Cookie(flashCookie)
	if err != nil || raw == "" {
		return nil
	}
	ctx.SetCookie(flashCookie, "", -1, "/", "", false, true)

	kind, msg, ok := strings.Cut(raw, "|")
	if !ok || msg == "" {
		return nil
	}
	return &Flash{Kind: kind, Message: msg}
}

// flashError turns a service failure into a message that tells the user
// which kind of failure happened.
func flashError(ctx *gin.Context, err error) {
	var ve *apperr.ValidationError

	switch {
	case errors.As(err, &ve):
		msgs := make([]string, 0, len(ve.Fields))
		for _, f := range ve.Fields {
			msgs = append(msgs, f.Message)
		}
		setFlash(ctx, "error", strings.Join(msgs, " "))
	case errors.Is(err, apperr.ErrValidation):
		setFlash(ctx, "error", apperr.Message(err, "The submitted data is invalid."))
	case errors.Is(err, apperr.ErrForbidden):
		setFlash(ctx, "error", "Not allowed: "+apperr.Message(err, "you cannot do that."))
	case errors.Is(err, apperr.ErrNotFound):
		setFlash(ctx, "error", "Not found: "+apperr.Message(err, "the item no longer exists."))
	case errors.Is(err, apperr.ErrConflict):
		setFlash(ctx, "error", "Already exists: "+apperr.Message(err, "choose another value."))
	default:
		setFlash(ctx, "error", "Something went wrong. Please try again.")
	}
}
