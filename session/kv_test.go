package session

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/redis/go-redis/v9"
)

type replyError string

func (e replyError) Error() string { return string(e) }
func (replyError) RedisError()     {}

var _ redis.Error = replyError("")

func TestRedisKVRetriesOnlyConnectionErrors(t *testing.T) {
	kv := NewRedisKV(nil)
	ctx := context.Background()

	cases := []struct {
		name  string
		err   error
		calls int
		want  error
	}{
		{"connection reset", io.EOF, 2, ErrStoreUnavailable},
		{"wrongtype reply", replyError("WRONGTYPE Operation against a key holding the wrong kind of value"), 1, ErrStoreUnavailable},
		{"noauth reply", replyError("NOAUTH Authentication required."), 1, ErrStoreUnavailable},
		{"missing key", redis.Nil, 1, ErrKeyNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			calls := 0
			err := kv.do(ctx, func() error {
				calls++
				return tc.err
			})
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if calls != tc.calls {
				t.Fatalf("expected %d attempts, got %d", tc.calls, calls)
			}
		})
	}
}

func TestRedisKVRetrySucceedsAfterConnectionError(t *testing.T) {
	kv := NewRedisKV(nil)
	calls := 0
	err := kv.do(context.Background(), func() error {
		calls++
		if calls == 1 {
			return io.ErrUnexpectedEOF
		}
		return nil
	})
	if err != nil || calls != 2 {
		t.Fatalf("expected success on second attempt, got %v after %d calls", err, calls)
	}
}
