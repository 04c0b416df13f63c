// Package ratelimit implements per-fingerprint fixed-window request counting with
// separate ceilings for anonymous and authenticated callers.
//
// # Window semantics
//
// The first hit for a fingerprint (or the first after its window elapsed) creates an
// entry with count=1 and reset_at=now+window. Later hits increment the count until it
// reaches the ceiling; further hits are rejected without incrementing, so headers on
// repeated rejections stay stable.
//
// # Backends
//
//   - [MemoryWindow]: mutex-guarded map with a periodic sweeper; single process.
//   - [RedisWindow]: one Lua script per hit; shared across instances.
//
// # What this package must NOT do
//
//   - Resolve identities or parse tokens (the middleware picks the fingerprint).
//   - Allow a request when the backend fails; errors are returned to the caller.
package ratelimit
