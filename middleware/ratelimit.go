package middleware

import (
	"log/slog"
	"net/http"

	"github.com/MrEthical07/gatekeep"
	"github.com/MrEthical07/gatekeep/ratelimit"
)

// RateLimit counts each request against limiter. The fingerprint is the client IP, or
// IP and subject when auth is non-nil and the request carries a token that resolves;
// resolved callers get the authenticated ceiling and [Guard] reuses their identity.
//
// X-RateLimit-* headers are written on every counted response. Rejections get 429 with
// Retry-After. A limiter backend failure is answered with 500 and never allowed through.
func RateLimit(limiter *ratelimit.Limiter, auth gatekeep.Authenticator, opts Options) func(http.Handler) http.Handler {
	recorder, _ := auth.(gatekeep.DecisionRecorder)
	logger := opts.logger()

	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			ip := ClientIP(r, opts.TrustProxy)
			ctx = gatekeep.WithClientIP(ctx, ip)

			fingerprint := ip
			var id *gatekeep.Identity
			if auth != nil && r.Method != http.MethodOptions {
				if token, err := ExtractToken(r.Header.Get("Authorization"), opts.Schemes); err == nil {
					if resolved, err := auth.Authenticate(ctx, token); err == nil {
						id = resolved
						fingerprint = ip + "|" + id.SubjectID
					}
				}
			}

			d, err := limiter.Check(ctx, fingerprint, id != nil)
			if err != nil {
				if recorder != nil {
					recorder.RecordDecision(err)
				}
				logger.ErrorContext(ctx, "rate limiter backend failure",
					slog.String("ip", ip),
					slog.Any("err", err),
				)
				writeJSON(w, http.StatusInternalServerError, ErrorBody{Code: CodeInternal, Message: messages[CodeInternal]})
				return
			}

			ratelimit.WriteHeaders(w.Header(), d)
			if !d.Allowed {
				if recorder != nil {
					recorder.RecordDecision(gatekeep.ErrRateLimitExceeded)
				}
				WriteError(w, gatekeep.ErrRateLimitExceeded, 0)
				return
			}

			if id != nil {
				ctx = withPreResolved(ctx, id)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
