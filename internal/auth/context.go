package auth

import "context"

type contextKey string

const userIDKey contextKey = "vitalsync-user-id"

// ContextWithUserID stores the logged-in user ID on the context.
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFromContext retrieves the user ID stored by ContextWithUserID.
func UserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(userIDKey).(string)
	return userID, ok && userID != ""
}
