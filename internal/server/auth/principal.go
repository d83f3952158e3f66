package auth

import (
	"context"
	"slices"
	"time"
)

// Principal is the identity proven by a verified access token.
type Principal struct {
	Subject   string
	Roles     []string
	ExpiresAt time.Time
}

func (p *Principal) HasRole(name string) bool {
	return slices.Contains(p.Roles, name)
}

type ctxKey struct{}

// WithPrincipal returns a child context carrying p.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

// PrincipalFromContext returns the Principal stored by WithPrincipal.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(ctxKey{}).(*Principal)
	return p, ok && p != nil
}
