package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrKeyNotFound is returned by [KV] implementations when a key is absent or expired.
var ErrKeyNotFound = errors.New("key not found")

// ErrStoreUnavailable wraps any failure to reach or write the backing store.
var ErrStoreUnavailable = errors.New("session store unavailable")

// KV is the TTL key-value surface the session service needs: SETEX, GET, EXPIRE, DEL.
//
// Implementations must be safe for concurrent use and rely on the backend's per-key
// atomicity; the service adds no locking of its own.
type KV interface {
	SetEX(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
	Expire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Del(ctx context.Context, key string) (bool, error)
	TTL(ctx context.Context, key string) (time.Duration, error)
}

// RedisKV implements [KV] on a go-redis client.
type RedisKV struct {
	redis   redis.UniversalClient
	retries int
}

// NewRedisKV returns a [RedisKV] that retries a connection failure once.
func NewRedisKV(client redis.UniversalClient) *RedisKV {
	return &RedisKV{redis: client, retries: 1}
}

// WithRetries overrides the number of retries after the first attempt.
func (r *RedisKV) WithRetries(n int) *RedisKV {
	if n < 0 {
		n = 0
	}
	r.retries = n
	return r
}

// SetEX writes value with the given expiry.
func (r *RedisKV) SetEX(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.do(ctx, func() error {
		return r.redis.Set(ctx, key, value, ttl).Err()
	})
}

// Get returns the value or [ErrKeyNotFound].
func (r *RedisKV) Get(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := r.do(ctx, func() error {
		var err error
		data, err = r.redis.Get(ctx, key).Bytes()
		return err
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Expire resets the key's expiry. It reports false when the key does not exist.
func (r *RedisKV) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	var ok bool
	err := r.do(ctx, func() error {
		var err error
		ok, err = r.redis.Expire(ctx, key, ttl).Result()
		return err
	})
	return ok, err
}

// Del removes the key. It reports false when nothing was deleted.
func (r *RedisKV) Del(ctx context.Context, key string) (bool, error) {
	var n int64
	err := r.do(ctx, func() error {
		var err error
		n, err = r.redis.Del(ctx, key).Result()
		return err
	})
	return n > 0, err
}

// TTL returns the remaining expiry of key or [ErrKeyNotFound].
func (r *RedisKV) TTL(ctx context.Context, key string) (time.Duration, error) {
	var ttl time.Duration
	err := r.do(ctx, func() error {
		var err error
		ttl, err = r.redis.PTTL(ctx, key).Result()
		return err
	})
	if err != nil {
		return 0, err
	}
	// -2: missing key, -1: key without expiry.
	if ttl == -2 {
		return 0, ErrKeyNotFound
	}
	return ttl, nil
}

// Ping checks connectivity.
func (r *RedisKV) Ping(ctx context.Context) error {
	if err := r.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (r *RedisKV) do(ctx context.Context, op func() error) error {
	var err error
	for attempt := 0; attempt <= r.retries; attempt++ {
		err = op()
		if err == nil {
			return nil
		}
		if errors.Is(err, redis.Nil) {
			return ErrKeyNotFound
		}
		if ctx.Err() != nil || !transient(err) {
			break
		}
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

// transient reports whether err is a connection-level failure worth one more try.
// Error replies from the server (WRONGTYPE, NOAUTH, READONLY) fail the same way again.
func transient(err error) bool {
	var reply redis.Error
	return !errors.As(err, &reply)
}
