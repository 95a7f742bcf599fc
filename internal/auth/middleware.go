package auth

import (
	"context"
	"net/http"
)

type contextKey string

const adminIDKey contextKey = "admin_id"

type AccessVerifier interface {
	VerifyAccessToken(token string) (string, error)
}

var _ AccessVerifier = (*TokenIssuer)(nil)

// Middleware admits requests carrying a valid accessToken cookie and stores
// the admin id in the request context.
func Middleware(verifier AccessVerifier, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(AccessTokenCookie)
		if err != nil || cookie.Value == "" {
			writeError(w, http.StatusUnauthorized, "Unauthorized: No token provided")
			return
		}

		adminID, err := verifier.VerifyAccessToken(cookie.Value)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Unauthorized: Invalid token")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithAdminID(r.Context(), adminID)))
	})
}

// RequireAdmin adapts Middleware to router chains.
func RequireAdmin(verifier AccessVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return Middleware(verifier, next)
	}
}

func WithAdminID(ctx context.Context, adminID string) context.Context {
	return context.WithValue(ctx, adminIDKey, adminID)
}

func AdminIDFromContext(ctx context.Context) (string, bool) {
	adminID, ok := ctx.Value(adminIDKey).(string)
	return adminID, ok && adminID != ""
}
