package auth

import (
	"encoding/json"
	"net/http"
	"strings"
)

// Middleware attaches the principal of a valid bearer token to the request
// context. Requests without an Authorization header pass through anonymous,
// so public reads work and privileged calls fail in the Authorizer. A header
// that is present but unverifiable is rejected with 401. A nil validator
// rejects every presented token.
func Middleware(v *JWTValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}

			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				writeUnauthorized(w, "invalid Authorization header format (expected 'Bearer <token>')")
				return
			}

			if v == nil {
				writeUnauthorized(w, "authentication not configured")
				return
			}

			subject, err := v.Validate(parts[1])
			if err != nil {
				writeUnauthorized(w, "invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), subject)))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="timelock"`)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message, "code": "unauthorized"})
}
