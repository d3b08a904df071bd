package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"market-chat/auth"
)

type contextKey string

const userIDKey contextKey = "user_id"

// AuthMiddleware resolves the Authorization bearer token through the same
// verifier the WebSocket gateway uses and stores the user id in the request
// context.
func AuthMiddleware(log *slog.Logger, verifier auth.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				http.Error(w, "Unauthorized: missing Authorization header", http.StatusUnauthorized)
				return
			}
			token := strings.TrimPrefix(header, "Bearer ")

			userID, err := verifier.Verify(r.Context(), token)
			if err != nil {
				log.Debug("Request rejected", "error", err)
				http.Error(w, "Unauthorized: invalid token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserID extracts the authenticated user id placed by AuthMiddleware.
func UserID(ctx context.Context) string {
	userID, _ := ctx.Value(userIDKey).(string)
	return userID
}
