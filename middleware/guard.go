package middleware

import (
	"context"
	"net/http"

	"github.com/MrEthical07/keynotify"
)

type sessionStateContextKey struct{}

// StateFromContext returns the session state a guard admitted the request with.
func StateFromContext(ctx context.Context) (keynotify.SessionState, bool) {
	state, ok := ctx.Value(sessionStateContextKey{}).(keynotify.SessionState)
	return state, ok
}

// RequireSession admits a request only while src reports an authenticated session.
//
// While the session is still being verified the guard answers 503 with a
// Retry-After header instead of redirecting, so a returning user with a valid
// stored token is never bounced to loginPath during startup. Unauthenticated
// requests get a 302 to loginPath.
func RequireSession(src keynotify.StateSource, loginPath string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if src == nil {
				http.Redirect(w, r, loginPath, http.StatusFound)
				return
			}
			decide(w, r, next, src.State(), loginPath)
		})
	}
}

func decide(w http.ResponseWriter, r *http.Request, next http.Handler, state keynotify.SessionState, loginPath string) {
	switch keynotify.Guard(state) {
	case keynotify.DecisionAllow:
		ctx := context.WithValue(r.Context(), sessionStateContextKey{}, state)
		next.ServeHTTP(w, r.WithContext(ctx))
	case keynotify.DecisionRedirect:
		http.Redirect(w, r, loginPath, http.StatusFound)
	default:
		w.Header().Set("Retry-After", "1")
		http.Error(w, "session loading", http.StatusServiceUnavailable)
	}
}
