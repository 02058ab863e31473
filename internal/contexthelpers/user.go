// Package contexthelpers stores request-scoped values in [context.Context].
package contexthelpers

import "context"

type contextKey string

const userIDContextKey = contextKey("userID")

// WithUserID returns a child context carrying the id of the user the request operates on.
func WithUserID(ctx context.Context, userID int) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}

// UserID returns the user id stored with WithUserID or 0 if there is none.
func UserID(ctx context.Context) int {
	userID, ok := ctx.Value(userIDContextKey).(int)
	if !ok {
		return 0
	}
	return userID
}
