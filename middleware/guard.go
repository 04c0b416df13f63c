package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/MrEthical07/gatekeep"
)

// Options configures [Guard], [RateLimit] and [LogoutHandler].
type Options struct {
	Logger *slog.Logger
	// Schemes accepted in the Authorization header; nil means DefaultSchemes.
	Schemes []string
	// StorageFailureStatus answers gatekeep.ErrStorage: 401 (default) or 500.
	StorageFailureStatus int
	// TrustProxy takes the client IP from the first X-Forwarded-For hop.
	TrustProxy bool
}

// OptionsFromConfig derives middleware options from an engine configuration.
func OptionsFromConfig(cfg gatekeep.Config, logger *slog.Logger) Options {
	return Options{
		Logger:               logger,
		Schemes:              cfg.HTTP.AcceptedSchemes,
		StorageFailureStatus: cfg.HTTP.StorageFailureStatus,
		TrustProxy:           cfg.HTTP.TrustProxy,
	}
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}

type preResolvedContextKey struct{}
type recorderContextKey struct{}

func withPreResolved(ctx context.Context, id *gatekeep.Identity) context.Context {
	return context.WithValue(ctx, preResolvedContextKey{}, id)
}

func preResolved(ctx context.Context) *gatekeep.Identity {
	id, _ := ctx.Value(preResolvedContextKey{}).(*gatekeep.Identity)
	return id
}

func record(ctx context.Context, err error) {
	if rec, ok := ctx.Value(recorderContextKey{}).(gatekeep.DecisionRecorder); ok {
		rec.RecordDecision(err)
	}
}

// Guard authenticates every request except OPTIONS. On success the identity is
// attached to the request context (gatekeep.IdentityFromContext) and auth.Renew is
// called; renewal never fails the request. On failure the request is rejected with
// 401, or the storage-failure status for store errors.
func Guard(auth gatekeep.Authenticator, opts Options) func(http.Handler) http.Handler {
	recorder, _ := auth.(gatekeep.DecisionRecorder)
	logger := opts.logger()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			if recorder != nil {
				ctx = context.WithValue(ctx, recorderContextKey{}, recorder)
			}

			id, err := authenticate(ctx, auth, r, opts)
			if err != nil {
				record(ctx, err)
				if errors.Is(err, gatekeep.ErrStorage) {
					logger.ErrorContext(ctx, "authentication store failure",
						slog.String("path", r.URL.Path),
						slog.Any("err", err),
					)
				}
				WriteError(w, err, opts.StorageFailureStatus)
				return
			}
			record(ctx, nil)

			auth.Renew(ctx, id)

			ctx = gatekeep.WithIdentity(ctx, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func authenticate(ctx context.Context, auth gatekeep.Authenticator, r *http.Request, opts Options) (*gatekeep.Identity, error) {
	if id := preResolved(ctx); id != nil {
		return id, nil
	}
	if auth == nil {
		return nil, gatekeep.ErrEngineNotReady
	}
	token, err := ExtractToken(r.Header.Get("Authorization"), opts.Schemes)
	if err != nil {
		return nil, err
	}
	return auth.Authenticate(ctx, token)
}

// Chain wraps h with mws so that mws[0] runs first.
func Chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
