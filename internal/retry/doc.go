// Package retry runs an operation with linearly growing delays between attempts.
//
// # Delay semantics
//
// The N-th retry (1-based) waits N × Policy.Step before re-running the operation, so
// with Step=2s and MaxRetries=3 the waits are 2s, 4s, 6s. Waits are taken on the
// policy's clockwork.Clock so tests can drive time explicitly.
//
// # What this package must NOT do
//
//   - Decide which errors are retryable (callers pass a Classify func).
//   - Be imported outside the keynotify module.
package retry
