// Package credential provides the two-tier bearer token slot used by keynotify clients,
// together with the storage backends that hold it.
//
// # Tiers
//
// A [Slot] owns one token key across two [Backend]s: a durable tier that survives process
// restarts and a session tier that is discarded when the client process ends. At most one
// tier holds a token at any time; [Slot.Write] clears the other tier before setting the
// requested one, under the slot's lock.
//
// # Backends
//
//   - [MemoryBackend]: process-local map; the default session tier.
//   - [FileBackend]: one file per key under a private directory, optionally sealed with a
//     passphrase; the default durable tier.
//   - [RedisBackend]: shared token storage for multiple client processes.
//
// # What this package must NOT do
//
//   - Import keynotify (no upward imports).
//   - Interpret token contents; tokens are opaque strings here.
//   - Write to a tier outside [Slot.Write], [Slot.Clear] and [Slot.Reseal]. Reads never write.
package credential
