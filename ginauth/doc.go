// Package ginauth adapts the gatekeep net/http middleware to gin route groups.
//
// Every adapter wraps the matching middleware function through [Wrap], so status codes,
// bodies and headers are identical across both routers. Handlers read the caller with
// [IdentityFromGin].
package ginauth
