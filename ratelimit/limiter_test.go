package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newMemoryLimiter(cfg Config) (*Limiter, *MemoryWindow, *testClock) {
	clock := &testClock{now: time.Unix(1_700_000_000, 0)}
	mw := NewMemoryWindow()
	return New(mw, cfg).WithClock(clock.Now), mw, clock
}

func TestAnonymousCeilingRejectsThirtyFirst(t *testing.T) {
	l, _, _ := newMemoryLimiter(DefaultConfig())
	ctx := context.Background()

	for i := 1; i <= 30; i++ {
		d, err := l.Check(ctx, "10.0.0.1", false)
		if err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
		if !d.Allowed {
			t.Fatalf("request %d should be allowed", i)
		}
		if d.Remaining != 30-i {
			t.Fatalf("request %d: expected remaining %d, got %d", i, 30-i, d.Remaining)
		}
	}

	d, err := l.Check(ctx, "10.0.0.1", false)
	if err != nil {
		t.Fatalf("request 31: %v", err)
	}
	if d.Allowed {
		t.Fatal("request 31 should be rejected")
	}
	if d.RetryAfter <= 0 {
		t.Fatalf("expected positive retry-after, got %v", d.RetryAfter)
	}
	if !errors.Is(d.Err(), ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", d.Err())
	}
}

func TestRejectedRequestsDoNotDistortCount(t *testing.T) {
	l, mw, _ := newMemoryLimiter(Config{AnonymousLimit: 2, AuthenticatedLimit: 5, Window: time.Minute})
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		if _, err := l.Check(ctx, "ip", false); err != nil {
			t.Fatalf("check: %v", err)
		}
	}
	if got := mw.entries["a:ip"].count; got != 2 {
		t.Fatalf("count must stay at the ceiling, got %d", got)
	}
	d, _ := l.Check(ctx, "ip", false)
	if d.Remaining != 0 || d.Limit != 2 {
		t.Fatalf("unexpected decision %+v", d)
	}
}

func TestWindowElapseAllowsAgain(t *testing.T) {
	l, _, clock := newMemoryLimiter(Config{AnonymousLimit: 1, AuthenticatedLimit: 1, Window: time.Minute})
	ctx := context.Background()

	if d, _ := l.Check(ctx, "ip", false); !d.Allowed {
		t.Fatal("first request should be allowed")
	}
	d, _ := l.Check(ctx, "ip", false)
	if d.Allowed {
		t.Fatal("second request should be rejected")
	}
	if d.RetryAfter != time.Minute {
		t.Fatalf("expected retry-after of a full window, got %v", d.RetryAfter)
	}

	clock.Advance(time.Minute)
	d, _ = l.Check(ctx, "ip", false)
	if !d.Allowed || d.Remaining != 0 {
		t.Fatalf("expected fresh window, got %+v", d)
	}
}

func TestAuthenticatedProfileIsSeparate(t *testing.T) {
	l, _, _ := newMemoryLimiter(Config{AnonymousLimit: 1, AuthenticatedLimit: 3, Window: time.Minute})
	ctx := context.Background()

	if d, _ := l.Check(ctx, "ip", false); !d.Allowed {
		t.Fatal("anonymous first should pass")
	}
	for i := 0; i < 3; i++ {
		d, _ := l.Check(ctx, "ip", true)
		if !d.Allowed || d.Limit != 3 {
			t.Fatalf("authenticated request %d: %+v", i, d)
		}
	}
	if d, _ := l.Check(ctx, "ip", true); d.Allowed {
		t.Fatal("authenticated fourth should be rejected")
	}
}

func TestConcurrentHitsDoNotLoseUpdates(t *testing.T) {
	const limit = 50
	l, mw, _ := newMemoryLimiter(Config{AnonymousLimit: limit, AuthenticatedLimit: limit, Window: time.Hour})
	ctx := context.Background()

	var allowed atomic.Int64
	var wg sync.WaitGroup
	start := make(chan struct{})
	for w := 0; w < 20; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			for i := 0; i < 10; i++ {
				d, err := l.Check(ctx, "shared", false)
				if err != nil {
					t.Errorf("check: %v", err)
					return
				}
				if d.Allowed {
					allowed.Add(1)
				}
			}
		}()
	}
	close(start)
	wg.Wait()

	if got := allowed.Load(); got != limit {
		t.Fatalf("expected exactly %d allowed, got %d", limit, got)
	}
	if got := mw.entries["a:shared"].count; got != limit {
		t.Fatalf("expected count %d, got %d", limit, got)
	}
}

func TestSweepRemovesElapsedEntries(t *testing.T) {
	l, mw, clock := newMemoryLimiter(Config{AnonymousLimit: 5, AuthenticatedLimit: 5, Window: time.Minute})
	ctx := context.Background()

	_, _ = l.Check(ctx, "old", false)
	clock.Advance(30 * time.Second)
	_, _ = l.Check(ctx, "new", false)
	clock.Advance(31 * time.Second)

	if removed := mw.Sweep(clock.Now()); removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}
	if mw.Len() != 1 {
		t.Fatalf("expected 1 remaining, got %d", mw.Len())
	}
}

func TestStartSweeperStopsOnCancel(t *testing.T) {
	mw := NewMemoryWindow()
	_, _, _, _ = mw.Hit(context.Background(), "k", 1, time.Millisecond, time.Now().Add(-time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	done := mw.StartSweeper(ctx, 5*time.Millisecond, nil)

	deadline := time.Now().Add(2 * time.Second)
	for mw.Len() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if mw.Len() != 0 {
		t.Fatal("sweeper did not remove elapsed entry")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop")
	}
}

type failingBackend struct{}

func (failingBackend) Hit(context.Context, string, int, time.Duration, time.Time) (int, time.Time, bool, error) {
	return 0, time.Time{}, false, errors.New("boom")
}

func TestBackendErrorIsReturned(t *testing.T) {
	l := New(failingBackend{}, DefaultConfig())
	if _, err := l.Check(context.Background(), "ip", false); !errors.Is(err, ErrBackendUnavailable) {
		t.Fatalf("expected ErrBackendUnavailable, got %v", err)
	}
}

func TestWriteHeaders(t *testing.T) {
	reset := time.Unix(1_700_000_060, 0)
	h := http.Header{}
	WriteHeaders(h, Decision{Allowed: true, Limit: 30, Remaining: 29, ResetAt: reset})
	if h.Get(HeaderLimit) != "30" || h.Get(HeaderRemaining) != "29" || h.Get(HeaderReset) != strconv.FormatInt(reset.Unix(), 10) {
		t.Fatalf("unexpected headers %v", h)
	}
	if h.Get(HeaderRetryAfter) != "" {
		t.Fatal("Retry-After must only be set on rejection")
	}

	h = http.Header{}
	WriteHeaders(h, Decision{Allowed: false, Limit: 30, ResetAt: reset, RetryAfter: 1500 * time.Millisecond})
	if h.Get(HeaderRetryAfter) != "2" {
		t.Fatalf("expected Retry-After rounded up to 2, got %q", h.Get(HeaderRetryAfter))
	}

	h = http.Header{}
	WriteHeaders(h, Decision{Allowed: false, Limit: 30, ResetAt: reset})
	if h.Get(HeaderRetryAfter) != "1" {
		t.Fatalf("expected Retry-After floor of 1, got %q", h.Get(HeaderRetryAfter))
	}
}

func TestConfigValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if err := (Config{AnonymousLimit: 0, AuthenticatedLimit: 1, Window: time.Second}).Validate(); err == nil {
		t.Fatal("expected zero ceiling to fail")
	}
}
