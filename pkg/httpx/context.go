package httpx

import (
	"context"
	"net/http"
)

type ctxKey string

const (
	CtxKeyUserID   ctxKey = "user_id"
	CtxKeyClientID ctxKey = "client_id"
)

// WithUserID records the signed-in user on the request context.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, CtxKeyUserID, userID)
}

// UserIDFromContext returns the signed-in user, or "" when anonymous.
func UserIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(CtxKeyUserID).(string)
	return v
}

// WithClientID records the authenticated OAuth client on the request context.
func WithClientID(ctx context.Context, clientID string) context.Context {
	return context.WithValue(ctx, CtxKeyClientID, clientID)
}

// ClientIDFromContext returns the authenticated client, or "".
func ClientIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(CtxKeyClientID).(string)
	return v
}

// UserIDKeyExtractor keys rate limits on the signed-in user.
func UserIDKeyExtractor(r *http.Request) string {
	return UserIDFromContext(r.Context())
}
