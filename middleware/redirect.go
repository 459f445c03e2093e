package middleware

import (
	"net/http"

	"github.com/MrEthical07/keynotify"
)

// RedirectIfAuthenticated sends an already signed-in visitor to target, for
// pages such as the login form. Loading and unauthenticated sessions pass through.
func RedirectIfAuthenticated(src keynotify.StateSource, target string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if src != nil && src.State().Authenticated() {
				http.Redirect(w, r, target, http.StatusFound)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
