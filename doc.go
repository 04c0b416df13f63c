// Package gatekeep provides request authentication and access gating for HTTP services:
// opaque-token sessions in a TTL key-value store, an alternative signed-token mode,
// role and ownership authorization, and per-identity rate limiting.
//
// The package is designed for concurrent server workloads: Engine methods are safe to call
// from multiple goroutines after initialization through [Builder.Build].
//
// # Token strategies
//
// [ModeOpaque] stores a [session.Session] per random token and renews its expiry on every
// authenticated request (sliding expiration). [ModeSigned] verifies a self-contained HS256
// token without a lookup. Both sit behind [Engine.Authenticate], so the HTTP middleware
// never knows which one is active.
//
// # Architecture boundaries
//
// gatekeep is the strategy glue. It exposes [Engine], [Builder], [Config], [Identity] and
// the error taxonomy. Storage lives in session/, signing in jwt/, counting in ratelimit/,
// HTTP translation in middleware/ and ginauth/.
//
// # What this package must NOT do
//
//   - Write HTTP responses (middleware owns status codes and bodies).
//   - Fail open: a store error during authentication is always [ErrStorage], never an
//     anonymous pass-through.
//   - Import middleware or ginauth (no import cycles).
package gatekeep
