package jwt

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrDenyListUnavailable wraps deny-list backend failures.
var ErrDenyListUnavailable = errors.New("deny list unavailable")

// DenyList records revoked token IDs until the tokens would have expired anyway.
type DenyList interface {
	Deny(ctx context.Context, tokenID string, until time.Time) error
	Denied(ctx context.Context, tokenID string) (bool, error)
}

// RedisDenyList stores revoked jti values as keys that expire with the token.
type RedisDenyList struct {
	redis  redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewRedisDenyList creates a deny-list under prefix (default "gkd").
func NewRedisDenyList(client redis.UniversalClient, prefix string) *RedisDenyList {
	if prefix == "" {
		prefix = "gkd"
	}
	return &RedisDenyList{redis: client, prefix: prefix, now: time.Now}
}

// WithClock sets the time source used to turn a token's exp into a key lifetime.
// It must match the clock of the [Codec] that issued the tokens.
func (d *RedisDenyList) WithClock(now func() time.Time) *RedisDenyList {
	if now != nil {
		d.now = now
	}
	return d
}

func (d *RedisDenyList) key(tokenID string) string {
	return d.prefix + ":" + tokenID
}

// Deny revokes tokenID until the given time. Already-expired tokens are a no-op.
func (d *RedisDenyList) Deny(ctx context.Context, tokenID string, until time.Time) error {
	if tokenID == "" {
		return errors.New("empty token id")
	}
	ttl := until.Sub(d.now())
	if ttl <= 0 {
		return nil
	}
	if err := d.redis.Set(ctx, d.key(tokenID), 1, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrDenyListUnavailable, err)
	}
	return nil
}

// Denied reports whether tokenID has been revoked.
func (d *RedisDenyList) Denied(ctx context.Context, tokenID string) (bool, error) {
	if tokenID == "" {
		return false, nil
	}
	n, err := d.redis.Exists(ctx, d.key(tokenID)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrDenyListUnavailable, err)
	}
	return n > 0, nil
}
