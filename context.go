package gatekeep

import "context"

type identityContextKey struct{}
type clientIPContextKey struct{}

// WithIdentity attaches an authenticated identity to ctx.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// IdentityFromContext returns the identity attached by the authorization middleware.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	if ctx == nil {
		return nil, false
	}
	id, ok := ctx.Value(identityContextKey{}).(*Identity)
	return id, ok && id != nil
}

// WithClientIP attaches the caller's IP address to ctx. Used for rate-limit
// fingerprints and log attributes.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

// ClientIPFromContext returns the IP attached by [WithClientIP], or "".
func ClientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	ip, _ := ctx.Value(clientIPContextKey{}).(string)
	return ip
}
