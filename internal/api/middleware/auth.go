// Task 5.2: Bearer JWT auth middleware.
// Reads Authorization: Bearer <token>, validates it, injects the actor into
// context. Auth is optional for this service: a nil secret disables the
// check entirely (local single-user deployments).
package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/svidal/promptforge/internal/api/ctxkeys"
	pkgauth "github.com/svidal/promptforge/pkg/auth"
)

// anonymousActor is recorded when auth is disabled.
const anonymousActor = "anonymous"

// Auth returns a middleware validating Bearer JWT tokens against secret.
// With an empty secret every request passes through as the anonymous actor.
func Auth(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(secret) == 0 {
				ctx := ctxkeys.WithValue(r.Context(), ctxkeys.Actor, anonymousActor)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			tokenString := extractBearerToken(r)
			if tokenString == "" {
				writeUnauthorized(w, "missing or invalid Authorization header")
				return
			}

			claims, err := pkgauth.ParseJWT(secret, tokenString)
			if err != nil {
				writeUnauthorized(w, "invalid or expired token")
				return
			}

			ctx := ctxkeys.WithValue(r.Context(), ctxkeys.Actor, claims.Actor)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// extractBearerToken extracts the token from "Authorization: Bearer <token>".
// Returns empty string if the header is missing, wrong scheme, or empty.
func extractBearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}

	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, prefix))
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": message}) //nolint:errcheck
}
