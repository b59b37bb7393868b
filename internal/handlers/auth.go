package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/JeromeLaquay/Jeroka-backoffice-sub000/libs/auth"
)

type contextKey string

const claimsContextKey contextKey = "auth.claims"

// RequireAuth rejects requests without a valid bearer token and stores
// the verified claims on the request context. The token's business id is
// the tenant every downstream query is scoped to.
func RequireAuth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				writeError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}
			token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
			claims, err := auth.ParseAndVerifyHS256(token, secret)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}
			if claims.BusinessID == "" {
				writeError(w, http.StatusForbidden, "token is not scoped to a business")
				return
			}
			ctx := context.WithValue(r.Context(), claimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ownerFromContext returns the authenticated tenant id, or "" when the
// request never went through RequireAuth.
func ownerFromContext(ctx context.Context) string {
	claims, ok := ctx.Value(claimsContextKey).(*auth.Claims)
	if !ok {
		return ""
	}
	return claims.BusinessID
}
