// Package auth carries the authenticated principal through a request.
package auth

import "context"

type contextKey struct{}

// Principal is the caller proven by the API token: the family it may act on
// and a free-form actor label ("mom", "kid-tablet") recorded on decisions.
type Principal struct {
	FamilyID int64
	Actor    string
}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, contextKey{}, p)
}

func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(contextKey{}).(Principal)
	return p, ok
}

func FamilyID(ctx context.Context) int64 {
	p, ok := FromContext(ctx)
	if !ok {
		return 0
	}
	return p.FamilyID
}

// Actor returns the principal's actor label, or "" when unauthenticated.
func Actor(ctx context.Context) string {
	p, ok := FromContext(ctx)
	if !ok {
		return ""
	}
	return p.Actor
}
