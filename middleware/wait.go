package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/MrEthical07/keynotify"
)

// Waiter reports a session state once verification settles. *keynotify.Session implements it.
type Waiter interface {
	keynotify.StateSource
	Wait(ctx context.Context) (keynotify.SessionState, error)
}

// RequireSessionWait is RequireSession that holds a request for up to maxWait
// while the session is loading. If the wait ends first the request gets the
// same 503 RequireSession would give.
func RequireSessionWait(src Waiter, loginPath string, maxWait time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if src == nil {
				http.Redirect(w, r, loginPath, http.StatusFound)
				return
			}

			state := src.State()
			if state.Loading() && maxWait > 0 {
				ctx, cancel := context.WithTimeout(r.Context(), maxWait)
				settled, err := src.Wait(ctx)
				cancel()
				if err == nil {
					state = settled
				}
			}
			decide(w, r, next, state, loginPath)
		})
	}
}
