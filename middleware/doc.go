// Package middleware adapts the keynotify route guard to net/http handlers.
//
// # Guards
//
//   - [RequireSession] answers from the current session state without blocking.
//   - [RequireSessionWait] holds the request briefly while startup verification runs.
//   - [RedirectIfAuthenticated] keeps signed-in visitors off the login page.
//
// Every decision is delegated to [keynotify.Guard]. Admitted requests carry the
// session state in their context, readable through [StateFromContext].
//
// # What this package must NOT do
//
//   - Read or write the stored token.
//   - Call the remote API.
package middleware
