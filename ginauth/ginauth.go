package ginauth

import (
	"log/slog"
	"net/http"

	"github.com/MrEthical07/gatekeep"
	"github.com/MrEthical07/gatekeep/middleware"
	"github.com/MrEthical07/gatekeep/ratelimit"
	"github.com/gin-gonic/gin"
)

// Wrap runs a net/http middleware inside the gin chain. When the middleware writes a
// response without calling next, the gin chain is aborted.
func Wrap(mw func(http.Handler) http.Handler) gin.HandlerFunc {
	return func(c *gin.Context) {
		called := false
		next := http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			called = true
			c.Request = r
			c.Next()
		})

		mw(next).ServeHTTP(c.Writer, c.Request)

		if !called {
			c.Abort()
		}
	}
}

// Guard is middleware.Guard for gin.
func Guard(auth gatekeep.Authenticator, opts middleware.Options) gin.HandlerFunc {
	return Wrap(middleware.Guard(auth, opts))
}

// RequireRole is middleware.RequireRole for gin.
func RequireRole(roles ...gatekeep.Role) gin.HandlerFunc {
	return Wrap(middleware.RequireRole(roles...))
}

// RequireAdmin is middleware.RequireAdmin for gin.
func RequireAdmin() gin.HandlerFunc {
	return Wrap(middleware.RequireAdmin())
}

// OwnerFunc returns the owner of the resource addressed by c, typically from a path
// parameter. Return middleware.ErrOwnerNotFound for a missing resource.
type OwnerFunc func(c *gin.Context) (string, error)

// RequireOwner is middleware.RequireOwner for gin.
func RequireOwner(ownerOf OwnerFunc, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		mw := middleware.RequireOwner(func(*http.Request) (string, error) {
			return ownerOf(c)
		}, logger)
		Wrap(mw)(c)
	}
}

// RateLimit is middleware.RateLimit for gin.
func RateLimit(limiter *ratelimit.Limiter, auth gatekeep.Authenticator, opts middleware.Options) gin.HandlerFunc {
	return Wrap(middleware.RateLimit(limiter, auth, opts))
}

// Logout serves middleware.LogoutHandler.
func Logout(revoker middleware.Revoker, opts middleware.Options) gin.HandlerFunc {
	return gin.WrapH(middleware.LogoutHandler(revoker, opts))
}

// IdentityFromGin returns the identity attached by [Guard].
func IdentityFromGin(c *gin.Context) (*gatekeep.Identity, bool) {
	if c == nil || c.Request == nil {
		return nil, false
	}
	return gatekeep.IdentityFromContext(c.Request.Context())
}
