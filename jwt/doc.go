// Package jwt inspects the bearer token held by a client without verifying its signature.
//
// The client never owns signing keys, so nothing here establishes trust: [Inspect] only
// reads registered claims so callers can report expiry and subject locally. The server
// remains the authority on validity.
//
// # What this package must NOT do
//
//   - Treat a successfully inspected token as valid.
//   - Import keynotify or credential.
package jwt
