package api

import (
	"context"

	"vrp/internal/auth"
)

type ctxKeyPrincipal struct{}

func withPrincipal(ctx context.Context, p auth.Principal) context.Context {
	return context.WithValue(ctx, ctxKeyPrincipal{}, p)
}

// principalFrom returns the caller verified by requireAdmin, if any.
func principalFrom(ctx context.Context) (auth.Principal, bool) {
	p, ok := ctx.Value(ctxKeyPrincipal{}).(auth.Principal)
	return p, ok
}
