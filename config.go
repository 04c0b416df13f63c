package gatekeep

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/MrEthical07/gatekeep/jwt"
	"github.com/MrEthical07/gatekeep/ratelimit"
	"github.com/MrEthical07/gatekeep/session"
)

// Mode selects the token strategy. Exactly one is active per Engine.
type Mode string

const (
	// ModeOpaque issues random tokens backed by a TTL key-value session.
	ModeOpaque Mode = "opaque"
	// ModeSigned issues self-contained HS256 tokens.
	ModeSigned Mode = "signed"
)

// Rate-limit backends.
const (
	RateLimitBackendMemory = "memory"
	RateLimitBackendRedis  = "redis"
)

// Config is the full engine configuration. Build copies it; later mutation of the
// caller's value has no effect.
type Config struct {
	Mode      Mode            `yaml:"mode"`
	Session   SessionConfig   `yaml:"session"`
	Token     TokenConfig     `yaml:"token"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Renewal   RenewalConfig   `yaml:"renewal"`
	HTTP      HTTPConfig      `yaml:"http"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Redis     RedisConfig     `yaml:"redis"`
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls opaque-token sessions.
type SessionConfig struct {
	Prefix       string        `yaml:"prefix"`
	DefaultTTL   time.Duration `yaml:"default_ttl"`
	AutoLoginTTL time.Duration `yaml:"auto_login_ttl"`
	OpTimeout    time.Duration `yaml:"op_timeout"`
	// Retries is the number of extra attempts for a failed store call.
	Retries int `yaml:"retries"`
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig controls signed tokens.
type TokenConfig struct {
	Secret   string        `yaml:"secret"`
	Lifetime time.Duration `yaml:"lifetime"`
	Issuer   string        `yaml:"issuer"`
	Leeway   time.Duration `yaml:"leeway"`
	// DenyList enables server-side revocation of signed tokens on logout.
	// Requires Redis.
	DenyList       bool   `yaml:"deny_list"`
	DenyListPrefix string `yaml:"deny_list_prefix"`
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// RateLimitConfig selects ceilings and the counting backend.
type RateLimitConfig struct {
	Enabled          bool `yaml:"enabled"`
	ratelimit.Config `yaml:",inline"`
	Backend          string        `yaml:"backend"`
	Prefix           string        `yaml:"prefix"`
	SweepInterval    time.Duration `yaml:"sweep_interval"`
}

/*
====================================
RENEWAL CONFIG
====================================
*/

// RenewalConfig controls sliding-expiration renewal of opaque sessions.
type RenewalConfig struct {
	// Async hands renewals to a bounded background dispatcher. When false the renewal
	// runs on the request goroutine (still best-effort).
	Async      bool `yaml:"async"`
	BufferSize int  `yaml:"buffer_size"`
	DropIfFull bool `yaml:"drop_if_full"`
}

/*
====================================
HTTP CONFIG
====================================
*/

// HTTPConfig controls how the middleware reads requests and shapes failures.
type HTTPConfig struct {
	// AcceptedSchemes lists the Authorization schemes recognized, compared case-sensitively.
	AcceptedSchemes []string `yaml:"accepted_schemes"`
	// TrustProxy makes the first X-Forwarded-For hop the client IP.
	TrustProxy bool `yaml:"trust_proxy"`
	// StorageFailureStatus is the status for ErrStorage: 401 or 500.
	StorageFailureStatus int `yaml:"storage_failure_status"`
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig toggles engine counters.
type MetricsConfig struct {
	Enabled                 bool `yaml:"enabled"`
	EnableLatencyHistograms bool `yaml:"enable_latency_histograms"`
}

/*
====================================
REDIS CONFIG
====================================
*/

// RedisConfig describes the Redis connection used when the builder is not handed a client.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// DefaultConfig returns an opaque-mode configuration with the stock lifetimes,
// in-memory rate limiting and async renewal.
func DefaultConfig() Config {
	return Config{
		Mode: ModeOpaque,
		Session: SessionConfig{
			Prefix:       "gks",
			DefaultTTL:   session.DefaultTTL,
			AutoLoginTTL: session.AutoLoginTTL,
			OpTimeout:    session.DefaultOpTimeout,
			Retries:      1,
		},
		Token: TokenConfig{
			Lifetime:       jwt.ProfileShort,
			DenyListPrefix: "gkd",
		},
		RateLimit: RateLimitConfig{
			Enabled:       true,
			Config:        ratelimit.DefaultConfig(),
			Backend:       RateLimitBackendMemory,
			Prefix:        "grl",
			SweepInterval: ratelimit.DefaultWindow,
		},
		Renewal: RenewalConfig{
			Async:      true,
			BufferSize: 1024,
			DropIfFull: true,
		},
		HTTP: HTTPConfig{
			AcceptedSchemes:      []string{"Token", "Bearer"},
			StorageFailureStatus: http.StatusUnauthorized,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.HTTP.AcceptedSchemes = append([]string(nil), cfg.HTTP.AcceptedSchemes...)
	return out
}

// Validate rejects inconsistent configuration.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("nil config")
	}

	switch c.Mode {
	case ModeOpaque:
	case ModeSigned:
		if len(c.Token.Secret) < jwt.MinSecretLength {
			return fmt.Errorf("signed mode requires a token secret of at least %d bytes", jwt.MinSecretLength)
		}
		if c.Token.Lifetime <= 0 {
			return errors.New("Token Lifetime must be > 0")
		}
		if c.Token.Leeway < 0 {
			return errors.New("Token Leeway must be >= 0")
		}
	default:
		return fmt.Errorf("unsupported mode %q", c.Mode)
	}

	// Session
	if c.Session.DefaultTTL <= 0 || c.Session.AutoLoginTTL <= 0 {
		return errors.New("Session TTLs must be > 0")
	}
	if c.Session.OpTimeout <= 0 {
		return errors.New("Session OpTimeout must be > 0")
	}
	if c.Session.Retries < 0 {
		return errors.New("Session Retries must be >= 0")
	}

	// Rate limit
	if c.RateLimit.Enabled {
		if err := c.RateLimit.Config.Validate(); err != nil {
			return err
		}
		if c.RateLimit.Backend != RateLimitBackendMemory && c.RateLimit.Backend != RateLimitBackendRedis {
			return fmt.Errorf("unsupported rate limit backend %q", c.RateLimit.Backend)
		}
	}

	// Renewal
	if c.Renewal.Async && c.Renewal.BufferSize <= 0 {
		return errors.New("Renewal BufferSize must be > 0 when Async is true")
	}

	// HTTP
	if len(c.HTTP.AcceptedSchemes) == 0 {
		return errors.New("HTTP AcceptedSchemes must not be empty")
	}
	for _, s := range c.HTTP.AcceptedSchemes {
		if s == "" {
			return errors.New("HTTP AcceptedSchemes must not contain empty schemes")
		}
	}
	if c.HTTP.StorageFailureStatus != http.StatusUnauthorized &&
		c.HTTP.StorageFailureStatus != http.StatusInternalServerError {
		return errors.New("HTTP StorageFailureStatus must be 401 or 500")
	}

	return nil
}
