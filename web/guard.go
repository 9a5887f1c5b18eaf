package web

import (
	"net/http"
	"strings"

	"github.com/amonks/taskdash/internal/credstore"
)

// LoginPath and HomePath are where the guard sends visitors.
const (
	LoginPath = "/login"
	HomePath  = "/dashboard"
)

var protectedPrefixes = []string{"/dashboard", "/todos", "/profile", "/settings"}

var publicPaths = []string{"/login", "/signup", "/verify-otp", "/forgot-password"}

// Guard routes visitors by whether the request carries a token. It only
// checks presence; the API decides whether the token is still valid.
func Guard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		switch {
		case path == "/":
			http.Redirect(w, r, LoginPath, http.StatusFound)
			return
		case matchesAny(path, protectedPrefixes) && !hasToken(r):
			http.Redirect(w, r, LoginPath, http.StatusFound)
			return
		case matchesAny(path, publicPaths) && hasToken(r):
			http.Redirect(w, r, HomePath, http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func matchesAny(path string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}
	return false
}

func hasToken(r *http.Request) bool {
	return requestToken(r) != ""
}

// requestToken returns the token from the auth cookie or a bearer
// Authorization header.
func requestToken(r *http.Request) string {
	if cookie, err := r.Cookie(credstore.CookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}
