// Package auth identifies callers from bearer JWTs. The caller identity is
// only used to partition cache keys per user; requests without a token pass
// through as anonymous.
package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Middleware validates an optional Bearer token and stamps the subject claim
// into the X-User-ID header for downstream handlers and cache-key
// construction. Any client-supplied X-User-ID is stripped first so identity
// cannot be spoofed. A present-but-invalid token is rejected; an absent
// token is anonymous.
func Middleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Header.Del("X-User-ID")

			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}

			tokenString := strings.TrimPrefix(header, "Bearer ")
			if tokenString == header {
				unauthorized(w, "authorization header must use the Bearer scheme")
				return
			}

			token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid {
				unauthorized(w, "invalid token")
				return
			}

			subject, err := token.Claims.GetSubject()
			if err != nil || subject == "" {
				unauthorized(w, "token has no subject")
				return
			}

			r.Header.Set("X-User-ID", subject)
			next.ServeHTTP(w, r)
		})
	}
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	fmt.Fprintf(w, `{"error":%q}`, msg)
}

// CallerID returns the authenticated caller for a request, or "" for
// anonymous callers.
func CallerID(r *http.Request) string {
	return r.Header.Get("X-User-ID")
}
