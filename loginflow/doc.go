// Package loginflow drives the combined login-or-register form.
//
// A [Flow] watches the username field, debounces availability checks and
// decides whether the invite code field is enabled. [Flow.Submit] posts the
// form and stores the issued token on success.
//
// Checks fail open: when check-status cannot be answered the invite code field
// is enabled rather than blocking the user.
package loginflow
