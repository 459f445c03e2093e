// Package debounce delays a callback until its trigger has been quiet for a fixed window.
//
// Each Trigger cancels the pending callback and schedules the new one, so only the last
// trigger inside a window runs. Timers come from a clockwork.Clock.
//
// # What this package must NOT do
//
//   - Cancel work that has already started; callers own in-flight cancellation.
//   - Be imported outside the keynotify module.
package debounce
