package gatekeep

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/MrEthical07/gatekeep/jwt"
	"github.com/MrEthical07/gatekeep/ratelimit"
	"github.com/MrEthical07/gatekeep/session"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// Builder assembles an [Engine]. A Builder is single-use.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	kv          session.KV
	rateBackend ratelimit.Backend
	denyList    jwt.DenyList
	logger      *slog.Logger
	now         func() time.Time

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the configuration. The value is copied.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the client backing the session store, the redis rate-limit backend
// and the signed-token deny-list.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithKV overrides the session store. Takes precedence over WithRedis for sessions.
func (b *Builder) WithKV(kv session.KV) *Builder {
	b.kv = kv
	return b
}

// WithRateLimitBackend overrides the rate-limit backend chosen from config.
func (b *Builder) WithRateLimitBackend(backend ratelimit.Backend) *Builder {
	b.rateBackend = backend
	return b
}

// WithDenyList overrides the signed-token deny-list.
func (b *Builder) WithDenyList(d jwt.DenyList) *Builder {
	b.denyList = d
	return b
}

// WithLogger sets the engine logger. Nil means slog.Default().
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock replaces the clock used for issue times, token expiry and rate-limit windows.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// WithMetricsEnabled toggles engine counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the authenticate latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	now := b.now
	if now == nil {
		now = time.Now
	}
	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "gatekeep"))

	e := &Engine{
		config:   cfg,
		metrics:  NewMetrics(cfg.Metrics),
		logger:   logger,
		now:      now,
		renewLog: rate.Sometimes{First: 3, Interval: 10 * time.Second},
		storeLog: rate.Sometimes{First: 3, Interval: 10 * time.Second},
	}

	// -------- TOKEN STRATEGY --------
	switch cfg.Mode {
	case ModeOpaque:
		kv := b.kv
		if kv == nil {
			if b.redis == nil {
				return nil, errors.New("opaque mode requires a redis client or session KV")
			}
			kv = session.NewRedisKV(b.redis).WithRetries(cfg.Session.Retries)
		}
		e.sessions = session.NewService(kv, session.Config{
			Prefix:       cfg.Session.Prefix,
			DefaultTTL:   cfg.Session.DefaultTTL,
			AutoLoginTTL: cfg.Session.AutoLoginTTL,
			OpTimeout:    cfg.Session.OpTimeout,
		}).WithClock(now)
		e.strategy = &opaqueStrategy{sessions: e.sessions}

	case ModeSigned:
		codec, err := jwt.NewCodec(jwt.Config{
			Secret:   []byte(cfg.Token.Secret),
			Lifetime: cfg.Token.Lifetime,
			Issuer:   cfg.Token.Issuer,
			Leeway:   cfg.Token.Leeway,
		})
		if err != nil {
			return nil, err
		}
		codec.WithClock(now)

		deny := b.denyList
		if deny == nil && cfg.Token.DenyList {
			if b.redis == nil {
				return nil, errors.New("token deny-list requires a redis client")
			}
			deny = jwt.NewRedisDenyList(b.redis, cfg.Token.DenyListPrefix).WithClock(now)
		}
		e.strategy = &signedStrategy{codec: codec, denyList: deny, timeout: cfg.Session.OpTimeout}
	}

	// -------- RATE LIMITER --------
	if cfg.RateLimit.Enabled {
		backend := b.rateBackend
		if backend == nil {
			switch cfg.RateLimit.Backend {
			case RateLimitBackendRedis:
				if b.redis == nil {
					return nil, errors.New("redis rate-limit backend requires a redis client")
				}
				backend = ratelimit.NewRedisWindow(b.redis, cfg.RateLimit.Prefix)
			default:
				e.window = ratelimit.NewMemoryWindow()
				backend = e.window
			}
		}
		e.limiter = ratelimit.New(backend, cfg.RateLimit.Config).WithClock(now)

		if e.window != nil {
			ctx, cancel := context.WithCancel(context.Background())
			e.stopSweeper = cancel
			e.sweeperDone = e.window.StartSweeper(ctx, cfg.RateLimit.SweepInterval, now)
		}
	}

	// -------- RENEWAL DISPATCHER --------
	if e.sessions != nil {
		e.renewals = newRenewDispatcher(cfg.Renewal, e.runRenewJob)
	}

	b.built = true
	return e, nil
}
