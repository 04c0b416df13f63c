package gatekeep

import "errors"

var (
	// ErrMissingToken is returned when the request carries no Authorization header.
	ErrMissingToken = errors.New("missing token")
	// ErrMalformedToken is returned for a wrong header shape, unknown scheme or wrong token length.
	ErrMalformedToken = errors.New("malformed token")
	// ErrTokenNotFound is returned when an opaque token has no live session.
	ErrTokenNotFound = errors.New("token not found")
	// ErrInvalidToken is returned for a bad signature, revoked or undecodable signed token.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenExpired is returned when a signed token's exp has elapsed.
	ErrTokenExpired = errors.New("token expired")
	// ErrInsufficientRole is returned when the caller's role is not allowed on a route.
	ErrInsufficientRole = errors.New("insufficient role")
	// ErrNotOwner is returned when a non-admin caller does not own the resource.
	ErrNotOwner = errors.New("not owner")
	// ErrStorage is returned when the identity store is unreachable, times out or fails a write.
	ErrStorage = errors.New("identity store unavailable")
	// ErrRateLimitExceeded is returned when a fingerprint exhausted its window.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	// ErrInvalidRole is returned when a role string is not one of the known roles.
	ErrInvalidRole = errors.New("invalid role")
	// ErrEngineNotReady is returned by methods called on a nil or closed Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// IsUnauthenticated reports whether err should produce a 401.
func IsUnauthenticated(err error) bool {
	return errors.Is(err, ErrMissingToken) ||
		errors.Is(err, ErrMalformedToken) ||
		errors.Is(err, ErrTokenNotFound) ||
		errors.Is(err, ErrInvalidToken) ||
		errors.Is(err, ErrTokenExpired)
}

// IsForbidden reports whether err should produce a 403.
func IsForbidden(err error) bool {
	return errors.Is(err, ErrInsufficientRole) || errors.Is(err, ErrNotOwner)
}
