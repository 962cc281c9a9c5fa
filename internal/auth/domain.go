// Package auth resolves bearer tokens to authenticated principals. The
// authorization core only consumes the resulting principal; credential
// storage itself belongs to the identity store.
package auth

import "context"

// Principal describes the authenticated actor attached to a request.
type Principal struct {
	UserID   int64  `json:"id"`
	Username string `json:"username"`
}

type principalContextKey struct{}

// ContextWithPrincipal stores the principal in context.
func ContextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext extracts the principal from context, nil when absent.
func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalContextKey{}).(*Principal)
	return p
}
