package actorctx

import (
	"context"

	"github.com/geocoder89/taskhub/internal/access"
)

type ctxKey struct{}

// WithPrincipal attaches the request's principal to ctx.
func WithPrincipal(ctx context.Context, p access.Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

func PrincipalFrom(ctx context.Context) (access.Principal, bool) {
	p, ok := ctx.Value(ctxKey{}).(access.Principal)
	return p, ok && p.UserID != ""
}

// UserIDFrom feeds the user_id attribute on log records.
func UserIDFrom(ctx context.Context) (string, bool) {
	p, ok := PrincipalFrom(ctx)
	return p.UserID, ok
}
