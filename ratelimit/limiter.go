package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrRateLimited is returned by [Decision.Err] for rejected requests.
	ErrRateLimited = errors.New("rate limited")
	// ErrBackendUnavailable wraps backend failures.
	ErrBackendUnavailable = errors.New("rate limit backend unavailable")
)

const (
	// DefaultAnonymousLimit is the per-window ceiling for callers without a valid token.
	DefaultAnonymousLimit = 30
	// DefaultAuthenticatedLimit is the per-window ceiling for authenticated callers.
	DefaultAuthenticatedLimit = 100
	// DefaultWindow is the fixed window length shared by both ceilings.
	DefaultWindow = 60_000 * time.Millisecond
)

// Config holds the two ceilings and the shared window length.
type Config struct {
	AnonymousLimit     int           `yaml:"anonymous_limit"`
	AuthenticatedLimit int           `yaml:"authenticated_limit"`
	Window             time.Duration `yaml:"window"`
}

// DefaultConfig returns 30/min anonymous, 100/min authenticated.
func DefaultConfig() Config {
	return Config{
		AnonymousLimit:     DefaultAnonymousLimit,
		AuthenticatedLimit: DefaultAuthenticatedLimit,
		Window:             DefaultWindow,
	}
}

// Validate rejects non-positive ceilings or window.
func (c Config) Validate() error {
	if c.AnonymousLimit <= 0 || c.AuthenticatedLimit <= 0 {
		return errors.New("rate limit ceilings must be > 0")
	}
	if c.Window <= 0 {
		return errors.New("rate limit window must be > 0")
	}
	return nil
}

// Decision is the outcome of one [Limiter.Check].
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

// Err returns [ErrRateLimited] when the request was rejected.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return ErrRateLimited
}

// Backend performs the atomic check-and-increment for one key.
//
// Hit returns the count after this request (never above limit), the window reset time,
// and whether the request is allowed.
type Backend interface {
	Hit(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (count int, resetAt time.Time, allowed bool, err error)
}

// Limiter applies [Config] over a [Backend].
type Limiter struct {
	backend Backend
	config  Config
	now     func() time.Time
}

// New creates a [Limiter]. Zero config fields take package defaults.
func New(backend Backend, cfg Config) *Limiter {
	def := DefaultConfig()
	if cfg.AnonymousLimit <= 0 {
		cfg.AnonymousLimit = def.AnonymousLimit
	}
	if cfg.AuthenticatedLimit <= 0 {
		cfg.AuthenticatedLimit = def.AuthenticatedLimit
	}
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	return &Limiter{backend: backend, config: cfg, now: time.Now}
}

// WithClock replaces the limiter clock. Backends receive the same instant.
func (l *Limiter) WithClock(now func() time.Time) *Limiter {
	if now != nil {
		l.now = now
	}
	return l
}

// Config returns the effective configuration.
func (l *Limiter) Config() Config {
	return l.config
}

// Check counts one request for fingerprint against the anonymous or authenticated ceiling.
func (l *Limiter) Check(ctx context.Context, fingerprint string, authenticated bool) (Decision, error) {
	limit := l.config.AnonymousLimit
	key := "a:" + fingerprint
	if authenticated {
		limit = l.config.AuthenticatedLimit
		key = "u:" + fingerprint
	}

	now := l.now()
	count, resetAt, allowed, err := l.backend.Hit(ctx, key, limit, l.config.Window, now)
	if err != nil {
		if errors.Is(err, ErrBackendUnavailable) {
			return Decision{}, err
		}
		return Decision{}, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	d := Decision{
		Allowed:   allowed,
		Limit:     limit,
		Remaining: limit - count,
		ResetAt:   resetAt,
	}
	if d.Remaining < 0 {
		d.Remaining = 0
	}
	if !allowed {
		d.RetryAfter = resetAt.Sub(now)
		if d.RetryAfter < 0 {
			d.RetryAfter = 0
		}
	}
	return d, nil
}
