package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/MrEthical07/gatekeep"
)

// Revoker ends a session for a raw token. *gatekeep.Engine implements it.
type Revoker interface {
	Logout(ctx context.Context, token string) error
}

// LogoutHandler revokes the request's token and always answers 200, whether or not a
// token was present or still live. Store failures are logged only.
func LogoutHandler(revoker Revoker, opts Options) http.Handler {
	logger := opts.logger()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token, err := ExtractToken(r.Header.Get("Authorization"), opts.Schemes); err == nil {
			if err := revoker.Logout(r.Context(), token); errors.Is(err, gatekeep.ErrStorage) {
				logger.WarnContext(r.Context(), "logout revoke failed", slog.Any("err", err))
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}
