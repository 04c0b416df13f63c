package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newServiceTest(t *testing.T) (*Service, *miniredis.Miniredis, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	svc := NewService(NewRedisKV(rdb), Config{Prefix: "gks"})
	return svc, mr, func() {
		rdb.Close()
		mr.Close()
	}
}

func TestIssueThenResolveReturnsClaims(t *testing.T) {
	svc, _, done := newServiceTest(t)
	defer done()
	ctx := context.Background()

	issued, err := svc.Issue(ctx, Claims{SubjectID: "u-1", Role: "admin"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if len(issued.Token) != TokenLength {
		t.Fatalf("expected %d-char token, got %d", TokenLength, len(issued.Token))
	}

	got, err := svc.Resolve(ctx, issued.Token)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got.SubjectID != "u-1" || got.Role != "admin" || got.AutoLogin {
		t.Fatalf("unexpected session %+v", got)
	}
	if got.Token != issued.Token || got.IssuedAt != issued.IssuedAt {
		t.Fatalf("token or issued_at mismatch: %+v vs %+v", got, issued)
	}
}

func TestResolveAfterTTLElapsedIsNotFound(t *testing.T) {
	svc, mr, done := newServiceTest(t)
	defer done()
	ctx := context.Background()

	issued, err := svc.IssueWithTTL(ctx, Claims{SubjectID: "u-1", Role: "user"}, 300*time.Second)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	mr.FastForward(301 * time.Second)

	if _, err := svc.Resolve(ctx, issued.Token); !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("expected ErrTokenNotFound after expiry, got %v", err)
	}
}

func TestAutoLoginUsesThirtyDayTTL(t *testing.T) {
	svc, _, done := newServiceTest(t)
	defer done()
	ctx := context.Background()

	issued, err := svc.Issue(ctx, Claims{SubjectID: "u-1", Role: "user", AutoLogin: true})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	ttl, err := svc.TTL(ctx, issued.Token)
	if err != nil {
		t.Fatalf("ttl: %v", err)
	}
	if ttl != 2592000*time.Second {
		t.Fatalf("expected 2592000s, got %v", ttl)
	}

	plain, err := svc.Issue(ctx, Claims{SubjectID: "u-2", Role: "user"})
	if err != nil {
		t.Fatalf("issue plain: %v", err)
	}
	ttl, err = svc.TTL(ctx, plain.Token)
	if err != nil {
		t.Fatalf("ttl plain: %v", err)
	}
	if ttl != 300*time.Second {
		t.Fatalf("expected 300s, got %v", ttl)
	}
}

func TestRenewSlidesExpiry(t *testing.T) {
	svc, mr, done := newServiceTest(t)
	defer done()
	ctx := context.Background()

	issued, err := svc.Issue(ctx, Claims{SubjectID: "u-1", Role: "user"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	mr.FastForward(200 * time.Second)
	if err := svc.Renew(ctx, issued.Token, svc.TTLFor(false)); err != nil {
		t.Fatalf("renew: %v", err)
	}
	mr.FastForward(200 * time.Second)

	if _, err := svc.Resolve(ctx, issued.Token); err != nil {
		t.Fatalf("expected session alive after renewal, got %v", err)
	}
}

func TestRenewIsIdempotent(t *testing.T) {
	svc, _, done := newServiceTest(t)
	defer done()
	ctx := context.Background()

	issued, err := svc.Issue(ctx, Claims{SubjectID: "u-1", Role: "user"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	for i := 0; i < 5; i++ {
		if err := svc.Renew(ctx, issued.Token, 300*time.Second); err != nil {
			t.Fatalf("renew %d: %v", i, err)
		}
	}
	ttl, err := svc.TTL(ctx, issued.Token)
	if err != nil {
		t.Fatalf("ttl: %v", err)
	}
	if ttl < 300*time.Second {
		t.Fatalf("repeated renewals shortened ttl to %v", ttl)
	}

	got, err := svc.Resolve(ctx, issued.Token)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got.SubjectID != "u-1" {
		t.Fatalf("renewal altered the stored value: %+v", got)
	}
}

func TestRenewMissingTokenIsNotFound(t *testing.T) {
	svc, _, done := newServiceTest(t)
	defer done()

	token, err := NewToken()
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	if err := svc.Renew(context.Background(), token, 0); !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("expected ErrTokenNotFound, got %v", err)
	}
}

func TestRevokeIsIdempotent(t *testing.T) {
	svc, _, done := newServiceTest(t)
	defer done()
	ctx := context.Background()

	issued, err := svc.Issue(ctx, Claims{SubjectID: "u-1", Role: "user"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if err := svc.Revoke(ctx, issued.Token); err != nil {
		t.Fatalf("first revoke: %v", err)
	}
	if err := svc.Revoke(ctx, issued.Token); !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("second revoke should report already gone, got %v", err)
	}
	if _, err := svc.Resolve(ctx, issued.Token); !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("expected revoked token to be gone, got %v", err)
	}
}

func TestResolveMalformedTokenSkipsStore(t *testing.T) {
	svc, mr, done := newServiceTest(t)
	defer done()

	mr.SetError("store should not be called")
	for _, token := range []string{"", "abc", "ZZ" + string(make([]byte, TokenLength-2))} {
		if _, err := svc.Resolve(context.Background(), token); !errors.Is(err, ErrMalformedToken) {
			t.Fatalf("token %q: expected ErrMalformedToken, got %v", token, err)
		}
	}
}

func TestStoreFailureSurfacesAsUnavailable(t *testing.T) {
	svc, mr, done := newServiceTest(t)
	defer done()
	ctx := context.Background()

	token, _ := NewToken()
	mr.SetError("ERR injected")

	if _, err := svc.Issue(ctx, Claims{SubjectID: "u-1"}); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("issue: expected ErrStoreUnavailable, got %v", err)
	}
	if _, err := svc.Resolve(ctx, token); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("resolve: expected ErrStoreUnavailable, got %v", err)
	}
	if err := svc.Renew(ctx, token, 0); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("renew: expected ErrStoreUnavailable, got %v", err)
	}
	if err := svc.Revoke(ctx, token); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("revoke: expected ErrStoreUnavailable, got %v", err)
	}
}

func TestResolveCorruptBlob(t *testing.T) {
	svc, mr, done := newServiceTest(t)
	defer done()

	token, _ := NewToken()
	if err := mr.Set(svc.key(token), "bad"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := svc.Resolve(context.Background(), token); !errors.Is(err, ErrSessionCorrupt) {
		t.Fatalf("expected ErrSessionCorrupt, got %v", err)
	}
}

func TestConcurrentResolveRenewRevoke(t *testing.T) {
	svc, _, done := newServiceTest(t)
	defer done()
	ctx := context.Background()

	issued, err := svc.Issue(ctx, Claims{SubjectID: "u-1", Role: "user"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	const workers = 16
	start := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(workers)

	for w := 0; w < workers; w++ {
		go func(workerID int) {
			defer wg.Done()
			<-start
			for r := 0; r < 50; r++ {
				var err error
				switch (workerID + r) % 3 {
				case 0:
					_, err = svc.Resolve(ctx, issued.Token)
				case 1:
					err = svc.Renew(ctx, issued.Token, time.Minute)
				default:
					if r == 49 {
						err = svc.Revoke(ctx, issued.Token)
					}
				}
				if err != nil && !errors.Is(err, ErrTokenNotFound) {
					t.Errorf("unexpected error: %v", err)
				}
			}
		}(w)
	}

	close(start)
	wg.Wait()

	if _, err := svc.Resolve(ctx, issued.Token); !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("expected token revoked at the end, got %v", err)
	}
}
