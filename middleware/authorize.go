package middleware

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/MrEthical07/gatekeep"
)

// OwnerFunc returns the subject id owning the resource addressed by r.
// Return [ErrOwnerNotFound] for a missing resource.
type OwnerFunc func(r *http.Request) (string, error)

// RequireRole rejects callers whose role is not in roles with 403 insufficient_role.
// It must run after [Guard]; a request without an identity gets 401.
func RequireRole(roles ...gatekeep.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}
			id, ok := gatekeep.IdentityFromContext(r.Context())
			if !ok {
				WriteError(w, gatekeep.ErrMissingToken, 0)
				return
			}
			if err := gatekeep.CheckRole(id, roles...); err != nil {
				record(r.Context(), err)
				WriteError(w, err, 0)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin is RequireRole(gatekeep.RoleAdmin).
func RequireAdmin() func(http.Handler) http.Handler {
	return RequireRole(gatekeep.RoleAdmin)
}

// RequireOwner rejects non-admin callers that do not own the resource with 403 not_owner.
// Admins pass without an owner lookup. A lookup error other than ErrOwnerNotFound is
// logged and answered with a generic 500.
func RequireOwner(ownerOf OwnerFunc, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}
			id, ok := gatekeep.IdentityFromContext(r.Context())
			if !ok {
				WriteError(w, gatekeep.ErrMissingToken, 0)
				return
			}
			if id.IsAdmin() {
				next.ServeHTTP(w, r)
				return
			}

			owner, err := ownerOf(r)
			if err != nil {
				if !errors.Is(err, ErrOwnerNotFound) {
					logger.ErrorContext(r.Context(), "owner lookup failed",
						slog.String("path", r.URL.Path),
						slog.Any("err", err),
					)
				}
				WriteError(w, err, 0)
				return
			}
			if err := gatekeep.CheckOwner(id, owner); err != nil {
				record(r.Context(), err)
				WriteError(w, err, 0)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
