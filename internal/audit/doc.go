// Package audit relays session lifecycle events to a caller-supplied sink.
//
// # Components
//
//   - [Sink]: event consumer (channel, JSON lines, no-op).
//   - [Dispatcher]: buffered relay with drop-if-full or block-if-full semantics.
//   - [Event]: one transition (login, logout, revoked, verify outcome).
//
// This package does not decide which events exist; the session store emits them.
package audit
