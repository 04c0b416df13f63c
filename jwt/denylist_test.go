package jwt

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestRedisDenyListExpiresWithToken(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	ctx := context.Background()
	dl := NewRedisDenyList(rdb, "")

	if err := dl.Deny(ctx, "jti-1", time.Now().Add(time.Minute)); err != nil {
		t.Fatalf("deny: %v", err)
	}
	denied, err := dl.Denied(ctx, "jti-1")
	if err != nil || !denied {
		t.Fatalf("expected jti-1 denied, got %v %v", denied, err)
	}

	mr.FastForward(2 * time.Minute)
	denied, err = dl.Denied(ctx, "jti-1")
	if err != nil || denied {
		t.Fatalf("expected deny entry to expire, got %v %v", denied, err)
	}

	if err := dl.Deny(ctx, "jti-old", time.Now().Add(-time.Second)); err != nil {
		t.Fatalf("deny expired: %v", err)
	}
	if mr.Exists("gkd:jti-old") {
		t.Fatal("already-expired token must not be stored")
	}
}

func TestRedisDenyListUsesInjectedClock(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	ctx := context.Background()
	fixed := time.Unix(1_700_000_000, 0)
	dl := NewRedisDenyList(rdb, "").WithClock(func() time.Time { return fixed })

	if err := dl.Deny(ctx, "jti-past", fixed.Add(time.Minute)); err != nil {
		t.Fatalf("deny: %v", err)
	}
	if ttl := mr.TTL("gkd:jti-past"); ttl != time.Minute {
		t.Fatalf("expected key lifetime of 1m from the injected clock, got %v", ttl)
	}
	if denied, err := dl.Denied(ctx, "jti-past"); err != nil || !denied {
		t.Fatalf("expected jti-past denied, got %v %v", denied, err)
	}

	if err := dl.Deny(ctx, "jti-expired", fixed.Add(-time.Second)); err != nil {
		t.Fatalf("deny expired: %v", err)
	}
	if mr.Exists("gkd:jti-expired") {
		t.Fatal("token expired by the injected clock must not be stored")
	}
}
