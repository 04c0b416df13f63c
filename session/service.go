package session

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrTokenNotFound is returned when a token has no live session.
	ErrTokenNotFound = errors.New("session token not found")
	// ErrMalformedToken is returned for tokens that fail [ParseToken].
	ErrMalformedToken = errors.New("malformed session token")
	// ErrSessionCorrupt is returned when a stored blob cannot be decoded.
	ErrSessionCorrupt = errors.New("session blob corrupt")
)

const (
	// DefaultTTL is the lifetime of a session issued without auto-login.
	DefaultTTL = 300 * time.Second
	// AutoLoginTTL is the lifetime of an auto-login session (30 days).
	AutoLoginTTL = 60 * 60 * 24 * 30 * time.Second
	// DefaultOpTimeout bounds each store call.
	DefaultOpTimeout = 250 * time.Millisecond
)

// Config controls key layout, lifetimes, and store timeouts.
type Config struct {
	Prefix       string
	DefaultTTL   time.Duration
	AutoLoginTTL time.Duration
	OpTimeout    time.Duration
}

func (c Config) withDefaults() Config {
	if c.Prefix == "" {
		c.Prefix = "gks"
	}
	if c.DefaultTTL <= 0 {
		c.DefaultTTL = DefaultTTL
	}
	if c.AutoLoginTTL <= 0 {
		c.AutoLoginTTL = AutoLoginTTL
	}
	if c.OpTimeout <= 0 {
		c.OpTimeout = DefaultOpTimeout
	}
	return c
}

// Service issues, resolves, renews and revokes opaque-token sessions.
//
// Service holds no mutable state of its own and is safe for concurrent use; ordering
// for a single token is whatever the [KV] backend guarantees per key.
type Service struct {
	kv     KV
	config Config
	now    func() time.Time
}

// NewService creates a [Service] over kv. Zero config fields take package defaults.
func NewService(kv KV, cfg Config) *Service {
	return &Service{
		kv:     kv,
		config: cfg.withDefaults(),
		now:    time.Now,
	}
}

// WithClock replaces the clock used for IssuedAt.
func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// Config returns the effective configuration.
func (s *Service) Config() Config {
	return s.config
}

func (s *Service) key(token string) string {
	return s.config.Prefix + ":" + token
}

// TTLFor returns the lifetime a session gets on issue and on every renewal.
func (s *Service) TTLFor(autoLogin bool) time.Duration {
	if autoLogin {
		return s.config.AutoLoginTTL
	}
	return s.config.DefaultTTL
}

// Issue creates a session for claims with the default or auto-login lifetime.
func (s *Service) Issue(ctx context.Context, claims Claims) (*Session, error) {
	return s.IssueWithTTL(ctx, claims, s.TTLFor(claims.AutoLogin))
}

// IssueWithTTL creates a session with an explicit lifetime.
//
//	Performance: 1 SETEX.
func (s *Service) IssueWithTTL(ctx context.Context, claims Claims, ttl time.Duration) (*Session, error) {
	if claims.SubjectID == "" {
		return nil, errors.New("session: empty subject")
	}
	if ttl <= 0 {
		ttl = s.TTLFor(claims.AutoLogin)
	}

	token, err := NewToken()
	if err != nil {
		return nil, err
	}

	sess := &Session{
		Token:     token,
		SubjectID: claims.SubjectID,
		Role:      claims.Role,
		AutoLogin: claims.AutoLogin,
		IssuedAt:  s.now().Unix(),
	}
	data, err := Encode(sess)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.OpTimeout)
	defer cancel()

	if err := s.kv.SetEX(ctx, s.key(token), data, ttl); err != nil {
		return nil, storeError(err)
	}
	return sess, nil
}

// Resolve returns the live session for token.
//
//	Performance: 1 GET.
func (s *Service) Resolve(ctx context.Context, token string) (*Session, error) {
	token, err := ParseToken(token)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.OpTimeout)
	defer cancel()

	data, err := s.kv.Get(ctx, s.key(token))
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return nil, ErrTokenNotFound
		}
		return nil, storeError(err)
	}

	sess, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionCorrupt, err)
	}
	sess.Token = token
	return sess, nil
}

// Renew resets the expiry of token to ttl without touching the stored value.
// A non-positive ttl means [Config.DefaultTTL].
//
//	Performance: 1 EXPIRE.
func (s *Service) Renew(ctx context.Context, token string, ttl time.Duration) error {
	token, err := ParseToken(token)
	if err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = s.config.DefaultTTL
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.OpTimeout)
	defer cancel()

	ok, err := s.kv.Expire(ctx, s.key(token), ttl)
	if err != nil {
		return storeError(err)
	}
	if !ok {
		return ErrTokenNotFound
	}
	return nil
}

// Revoke deletes token. A missing key returns [ErrTokenNotFound] so callers can tell
// "already gone" apart from a store failure; logout paths treat it as success.
//
//	Performance: 1 DEL.
func (s *Service) Revoke(ctx context.Context, token string) error {
	token, err := ParseToken(token)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.OpTimeout)
	defer cancel()

	deleted, err := s.kv.Del(ctx, s.key(token))
	if err != nil {
		return storeError(err)
	}
	if !deleted {
		return ErrTokenNotFound
	}
	return nil
}

// TTL reports the remaining lifetime of token.
func (s *Service) TTL(ctx context.Context, token string) (time.Duration, error) {
	token, err := ParseToken(token)
	if err != nil {
		return 0, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.OpTimeout)
	defer cancel()

	ttl, err := s.kv.TTL(ctx, s.key(token))
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return 0, ErrTokenNotFound
		}
		return 0, storeError(err)
	}
	return ttl, nil
}

func storeError(err error) error {
	if errors.Is(err, ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}
