package gatekeep

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

type renewJob struct {
	token string
	ttl   time.Duration
}

type renewFunc func(ctx context.Context, job renewJob)

// renewDispatcher runs sliding-expiration renewals off the request goroutine.
// One worker drains a bounded queue; Close drains what is already queued.
type renewDispatcher struct {
	cfg       RenewalConfig
	renew     renewFunc
	ch        chan renewJob
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
}

func newRenewDispatcher(cfg RenewalConfig, fn renewFunc) *renewDispatcher {
	if !cfg.Async || fn == nil {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}

	d := &renewDispatcher{
		cfg:   cfg,
		renew: fn,
		ch:    make(chan renewJob, cfg.BufferSize),
		done:  make(chan struct{}),
	}

	d.wg.Add(1)
	go d.run()

	return d
}

func (d *renewDispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case job := <-d.ch:
			d.renew(context.Background(), job)
		case <-d.done:
			for {
				select {
				case job := <-d.ch:
					d.renew(context.Background(), job)
				default:
					return
				}
			}
		}
	}
}

// Submit queues job. With DropIfFull a full queue drops the job and counts it;
// otherwise Submit waits for room, ctx, or Close.
func (d *renewDispatcher) Submit(ctx context.Context, job renewJob) bool {
	if d == nil || d.closed.Load() {
		return false
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if d.cfg.DropIfFull {
		select {
		case d.ch <- job:
			return true
		case <-d.done:
			return false
		default:
			d.dropped.Add(1)
			return false
		}
	}

	select {
	case d.ch <- job:
		return true
	case <-ctx.Done():
		d.dropped.Add(1)
		return false
	case <-d.done:
		return false
	}
}

// Close stops accepting jobs and waits for queued renewals to finish.
func (d *renewDispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.done)
		d.wg.Wait()
	})
}

// Dropped returns the number of renewals discarded under backpressure.
func (d *renewDispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
