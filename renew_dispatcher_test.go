package gatekeep

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
)

func TestRenewDispatcherDisabledIsNil(t *testing.T) {
	d := newRenewDispatcher(RenewalConfig{Async: false}, func(context.Context, renewJob) {})
	if d != nil {
		t.Fatalf("expected nil dispatcher when async is off")
	}
	if d.Submit(context.Background(), renewJob{}) {
		t.Fatalf("nil dispatcher must not accept jobs")
	}
	d.Close()
}

func TestRenewDispatcherDropIfFullCounts(t *testing.T) {
	block := make(chan struct{})
	var ran atomic.Int64
	d := newRenewDispatcher(RenewalConfig{Async: true, BufferSize: 1, DropIfFull: true}, func(context.Context, renewJob) {
		<-block
		ran.Add(1)
	})

	accepted := 0
	for i := 0; i < 10; i++ {
		if d.Submit(context.Background(), renewJob{token: "t"}) {
			accepted++
		}
	}
	close(block)
	d.Close()

	if uint64(accepted)+d.Dropped() != 10 {
		t.Fatalf("accepted %d + dropped %d != 10", accepted, d.Dropped())
	}
	if d.Dropped() == 0 {
		t.Fatalf("expected drops with a blocked worker and buffer of 1")
	}
	if ran.Load() != int64(accepted) {
		t.Fatalf("expected %d renewals to run, got %d", accepted, ran.Load())
	}
}

func TestRenewDispatcherCloseDrainsQueue(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]int{}
	d := newRenewDispatcher(RenewalConfig{Async: true, BufferSize: 64}, func(_ context.Context, job renewJob) {
		mu.Lock()
		seen[job.token]++
		mu.Unlock()
	})

	for i := 0; i < 50; i++ {
		d.Submit(context.Background(), renewJob{token: "t"})
	}
	d.Close()

	if seen["t"] != 50 {
		t.Fatalf("expected 50 drained jobs, got %d", seen["t"])
	}
	if d.Submit(context.Background(), renewJob{token: "late"}) {
		t.Fatalf("closed dispatcher must reject jobs")
	}
}

func TestRenewDispatcherBlockingSubmitHonorsContext(t *testing.T) {
	block := make(chan struct{})
	d := newRenewDispatcher(RenewalConfig{Async: true, BufferSize: 1}, func(context.Context, renewJob) {
		<-block
	})
	defer func() {
		close(block)
		d.Close()
	}()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Worker takes the first job, the buffer holds the second; the third must
	// give up on the canceled context.
	d.Submit(context.Background(), renewJob{})
	d.Submit(context.Background(), renewJob{})
	for i := 0; i < 3; i++ {
		d.Submit(ctx, renewJob{})
	}
	if d.Dropped() == 0 {
		t.Fatalf("expected canceled submits to be dropped")
	}
}
