// Package session provides opaque-token sessions backed by a TTL key-value store.
//
// # Tokens
//
// A token is 32 bytes from crypto/rand, hex-encoded. It carries no information and is
// only a lookup key. [ParseToken] rejects anything that could not have been produced by
// [NewToken] before the store is touched.
//
// # Storage
//
// Sessions are stored as a compact binary blob (see [Encode]) under "<prefix>:<token>"
// with a store-level expiry. The [KV] interface is the only I/O surface; [RedisKV] is the
// production implementation. Every call runs under the service's operation timeout and
// transient Redis errors are retried once before surfacing [ErrStoreUnavailable].
//
// # Sliding expiration
//
// [Service.Renew] refreshes the key's expiry without rewriting the value. Renewal is
// idempotent: repeated calls set the same TTL.
//
// # What this package must NOT do
//
//   - Import gatekeep, jwt, or middleware (no upward imports).
//   - Make authorization decisions (roles and ownership belong to the middleware).
//   - Log or return token values inside errors.
package session
