// Package keynotify is the client for the keyword notification API: an HTTP
// transport with bearer injection, envelope unwrapping and linear-backoff
// retries, and the session lifecycle built on top of it.
//
// A [Client] is built once through [Builder.Build] and is safe to call from
// multiple goroutines afterwards.
//
// # Architecture boundaries
//
// keynotify is the public surface. It exposes [Client], [Builder], [Config],
// [Session], [Verifier], [Guard] and value types (SessionState, APIError,
// MetricsSnapshot, etc.). Token persistence lives in the credential package;
// retry timing, debouncing, audit dispatch and logging setup live under
// internal/ and are never exported.
//
// # Session lifecycle
//
// A session starts Unknown. [Verifier.Run] moves it to Verifying when a token
// is stored and then to Authenticated or Unauthenticated depending on the
// whoami result. Only a 401 carrying TOKEN_INVALID or TOKEN_EXPIRED purges the
// token during that check; any other failure keeps the session authenticated.
// Login, Logout and the transport's revocation signal move the session at any
// time afterwards.
//
// # What this package must NOT do
//
//   - Retry 4xx responses or per-attempt timeouts.
//   - Leave a token in both credential tiers at once.
//   - Classify failures by message text; callers switch on [ErrorKind].
//   - Import any sub-package that re-imports keynotify (no import cycles).
package keynotify
