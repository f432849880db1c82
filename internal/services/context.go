package services

import "context"

type contextKey string

const identityContextKey contextKey = "chat_identity"

// Identity is the authenticated caller as carried on the request context.
type Identity struct {
	UserID   string
	UserType string
}

func WithIdentityContext(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, id)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityContextKey).(Identity)
	if !ok || id.UserID == "" {
		return Identity{}, false
	}
	return id, true
}
