package gatekeep

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/gatekeep/ratelimit"
	"github.com/MrEthical07/gatekeep/session"
	"golang.org/x/time/rate"
)

// Authenticator resolves a raw token to an identity and renews it afterwards.
// middleware.Guard depends on this interface only.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*Identity, error)
	// Renew is best-effort: failures are logged, never returned.
	Renew(ctx context.Context, id *Identity)
}

// DecisionRecorder is implemented by authenticators that count middleware outcomes.
type DecisionRecorder interface {
	RecordDecision(err error)
}

// Engine ties one token strategy to metrics, renewal dispatch and the rate limiter.
// Engine methods are safe for concurrent use after [Builder.Build].
type Engine struct {
	config   Config
	strategy strategy
	sessions *session.Service
	limiter  *ratelimit.Limiter
	window   *ratelimit.MemoryWindow
	renewals *renewDispatcher
	metrics  *Metrics
	logger   *slog.Logger
	now      func() time.Time

	renewLog rate.Sometimes
	storeLog rate.Sometimes

	stopSweeper context.CancelFunc
	sweeperDone <-chan struct{}
	closed      atomic.Bool
}

// Login issues a token for an identity the caller has already verified.
//
//	Performance: opaque mode 1 SETEX; signed mode no I/O.
func (e *Engine) Login(ctx context.Context, req LoginRequest) (*Issued, error) {
	if e == nil || e.closed.Load() {
		return nil, ErrEngineNotReady
	}
	if req.SubjectID == "" {
		return nil, errors.New("empty subject")
	}
	if req.Role == "" {
		req.Role = RoleUser
	}
	if _, err := ParseRole(string(req.Role)); err != nil {
		return nil, err
	}

	issued, err := e.strategy.issue(ctx, req)
	if err != nil {
		e.logStoreError(ctx, "login", err)
		return nil, err
	}
	e.metrics.Inc(MetricSessionIssued)
	e.logger.InfoContext(ctx, "token issued",
		slog.String("mode", string(e.config.Mode)),
		slog.String("subject", req.SubjectID),
		slog.String("role", string(req.Role)),
		slog.Bool("auto_login", req.AutoLogin),
	)
	return issued, nil
}

// Authenticate resolves token to an identity. Errors are the root sentinels:
// ErrMalformedToken, ErrTokenNotFound, ErrInvalidToken, ErrTokenExpired or ErrStorage.
// Store failures are never treated as anonymous.
//
//	Performance: opaque mode 1 GET; signed mode no I/O (1 EXISTS with a deny-list).
func (e *Engine) Authenticate(ctx context.Context, token string) (*Identity, error) {
	if e == nil || e.closed.Load() {
		return nil, ErrEngineNotReady
	}

	start := e.now()
	id, err := e.strategy.authenticate(ctx, token)
	e.metrics.Observe(MetricValidateLatency, e.now().Sub(start))

	if err != nil {
		e.logStoreError(ctx, "authenticate", err)
		return nil, err
	}
	return id, nil
}

// Renew slides the session expiry for id. Opaque mode only; signed mode is a no-op.
// With async renewal the job is queued and the call returns immediately. Failures are
// logged and counted, never returned.
func (e *Engine) Renew(ctx context.Context, id *Identity) {
	if e == nil || id == nil || id.token == "" || e.sessions == nil || e.closed.Load() {
		return
	}

	if e.renewals != nil {
		job := renewJob{token: id.token, ttl: e.sessions.TTLFor(id.AutoLogin)}
		if !e.renewals.Submit(ctx, job) {
			e.metrics.Inc(MetricRenewFailure)
		}
		return
	}

	_ = e.RenewNow(context.WithoutCancel(ctx), id)
}

// RenewNow performs the renewal synchronously and reports the outcome.
func (e *Engine) RenewNow(ctx context.Context, id *Identity) error {
	if e == nil || e.closed.Load() {
		return ErrEngineNotReady
	}
	if id == nil {
		return ErrTokenNotFound
	}
	err := e.strategy.renew(ctx, id)
	e.recordRenew(ctx, err)
	return err
}

func (e *Engine) runRenewJob(ctx context.Context, job renewJob) {
	err := e.sessions.Renew(ctx, job.token, job.ttl)
	if err != nil {
		err = mapSessionError(err)
	}
	e.recordRenew(ctx, err)
}

func (e *Engine) recordRenew(ctx context.Context, err error) {
	if err == nil {
		e.metrics.Inc(MetricRenewSuccess)
		return
	}
	e.metrics.Inc(MetricRenewFailure)
	e.renewLog.Do(func() {
		e.logger.WarnContext(ctx, "session renewal failed", slog.Any("err", err))
	})
}

// Logout revokes token. Opaque mode deletes the session and returns ErrTokenNotFound
// when it was already gone. Signed mode adds the token to the deny-list when one is
// configured and otherwise returns nil: the token stays valid until exp.
func (e *Engine) Logout(ctx context.Context, token string) error {
	if e == nil || e.closed.Load() {
		return ErrEngineNotReady
	}

	err := e.strategy.revoke(ctx, token)
	if err != nil {
		e.logStoreError(ctx, "logout", err)
		return err
	}
	e.metrics.Inc(MetricSessionRevoked)
	e.logger.InfoContext(ctx, "token revoked",
		slog.String("mode", string(e.config.Mode)),
		slog.String("token", fingerprint(token)),
	)
	return nil
}

// SessionTTL reports the remaining lifetime of an opaque token.
func (e *Engine) SessionTTL(ctx context.Context, token string) (time.Duration, error) {
	if e == nil || e.closed.Load() {
		return 0, ErrEngineNotReady
	}
	if e.sessions == nil {
		return 0, fmt.Errorf("session TTL is not available in %s mode", e.config.Mode)
	}
	ttl, err := e.sessions.TTL(ctx, token)
	if err != nil {
		return 0, mapSessionError(err)
	}
	return ttl, nil
}

// RecordDecision counts a middleware outcome: nil is a successful authentication,
// sentinel errors count against their reason.
func (e *Engine) RecordDecision(err error) {
	if e == nil {
		return
	}
	if errors.Is(err, ratelimit.ErrBackendUnavailable) {
		e.metrics.Inc(MetricRateLimitError)
		return
	}
	if id, ok := metricForError(err); ok {
		e.metrics.Inc(id)
	}
}

// Limiter returns the configured rate limiter, or nil when rate limiting is disabled.
func (e *Engine) Limiter() *ratelimit.Limiter {
	if e == nil {
		return nil
	}
	return e.limiter
}

// Mode returns the active token strategy.
func (e *Engine) Mode() Mode {
	if e == nil {
		return ""
	}
	return e.config.Mode
}

// Config returns a copy of the effective configuration.
func (e *Engine) Config() Config {
	if e == nil {
		return Config{}
	}
	return cloneConfig(e.config)
}

// Logger returns the engine logger.
func (e *Engine) Logger() *slog.Logger {
	if e == nil || e.logger == nil {
		return slog.Default()
	}
	return e.logger
}

// MetricsSnapshot returns a copy of all engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil {
		return (*Metrics)(nil).Snapshot()
	}
	return e.metrics.Snapshot()
}

// RenewalsDropped returns the number of renewals discarded because the queue was full.
func (e *Engine) RenewalsDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.renewals.Dropped()
}

// Close drains queued renewals and stops the limiter sweeper. Close is idempotent.
func (e *Engine) Close() {
	if e == nil || !e.closed.CompareAndSwap(false, true) {
		return
	}
	e.renewals.Close()
	if e.stopSweeper != nil {
		e.stopSweeper()
		<-e.sweeperDone
	}
}

func (e *Engine) logStoreError(ctx context.Context, op string, err error) {
	if !errors.Is(err, ErrStorage) {
		return
	}
	e.storeLog.Do(func() {
		e.logger.ErrorContext(ctx, "identity store failure",
			slog.String("op", op),
			slog.Any("err", err),
		)
	})
}

// fingerprint is a short, non-reversible label for a token in logs.
func fingerprint(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:4])
}
