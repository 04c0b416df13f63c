// Package middleware exposes net/http middleware for authentication, role and ownership
// authorization, and rate limiting on top of a gatekeep.Authenticator.
//
// # Chain
//
// The intended order is [RateLimit] → [Guard] → [RequireRole] / [RequireOwner] → handler.
// [RateLimit] resolves the caller once to pick the authenticated ceiling; [Guard] reuses
// that identity instead of hitting the store again.
//
//   - [Guard] extracts the token, authenticates it, attaches the identity and triggers
//     best-effort renewal. OPTIONS requests pass straight through.
//   - [RequireRole] / [RequireAdmin] reject callers outside a role whitelist with 403.
//   - [RequireOwner] rejects non-admin callers that do not own the resource with 403.
//   - [RateLimit] counts requests per fingerprint and writes X-RateLimit-* headers.
//
// Failures are JSON bodies of the form {"code": "...", "message": "..."}.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Authenticator and Limiter calls. It does
// NOT implement token or session logic itself.
//
// # What this package must NOT do
//
//   - Parse or sign tokens (delegates to the Authenticator).
//   - Access Redis (the engine and limiter backends own I/O).
//   - Leak store errors to clients: storage details are logged, responses stay generic.
package middleware
