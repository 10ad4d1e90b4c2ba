package auth

import "context"

type ctxKey int

const identityCtxKey ctxKey = iota

// SetIdentity returns a copy of ctx carrying id.
func SetIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityCtxKey, id)
}

// IdentityFromContext returns the identity set by the middleware, or nil.
func IdentityFromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityCtxKey).(*Identity)
	return id
}

// UserFromContext returns the caller's user id. ok is false when the
// request carries no identity or one with an empty subject.
func UserFromContext(ctx context.Context) (userID string, ok bool) {
	userID = IdentityFromContext(ctx).UserID()
	return userID, userID != ""
}
