// Package jwt signs and verifies self-contained HS256 tokens carrying a subject, a role
// and an expiry, with strict validation suitable for per-request authentication.
//
// Verification needs no store lookup. Consequently there is no revocation by default:
// a signed token stays valid until its exp claim. Deployments that need logout to take
// effect server-side can attach a [DenyList] keyed by the token's jti.
package jwt
