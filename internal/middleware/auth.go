package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
)

// AuthCookie is the cookie set by /auth/login; its value is the API token.
const AuthCookie = "authenticated"

// publicPaths are reachable without credentials.
var publicPaths = map[string]bool{
	"/healthz":     true,
	"/metrics":     true,
	"/auth/login":  true,
	"/auth/logout": true,
}

// AuthMiddleware requires the API token as a Bearer header, a "token" query
// parameter (browser WebSocket clients) or the auth cookie. An empty token disables the check.
func AuthMiddleware(token string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if publicPaths[r.URL.Path] || authorized(r, token) {
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("WWW-Authenticate", `Bearer realm="sentinel"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
		})
	}
}

func authorized(r *http.Request, token string) bool {
	if bearer, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok && matches(bearer, token) {
		return true
	}
	if q := r.URL.Query().Get("token"); q != "" && matches(q, token) {
		return true
	}
	if cookie, err := r.Cookie(AuthCookie); err == nil && matches(cookie.Value, token) {
		return true
	}
	return false
}

func matches(given, token string) bool {
	return subtle.ConstantTimeCompare([]byte(given), []byte(token)) == 1
}
