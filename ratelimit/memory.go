package ratelimit

import (
	"context"
	"sync"
	"time"
)

type windowEntry struct {
	count   int
	resetAt time.Time
}

// MemoryWindow keeps fixed-window counters in process memory.
//
// The read-increment-write for a key happens under one mutex, so concurrent hits for
// the same fingerprint never lose updates.
type MemoryWindow struct {
	mu      sync.Mutex
	entries map[string]*windowEntry
}

// NewMemoryWindow returns an empty [MemoryWindow].
func NewMemoryWindow() *MemoryWindow {
	return &MemoryWindow{entries: make(map[string]*windowEntry)}
}

// Hit implements [Backend].
func (m *MemoryWindow) Hit(_ context.Context, key string, limit int, window time.Duration, now time.Time) (int, time.Time, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := m.entries[key]
	if e == nil || !now.Before(e.resetAt) {
		e = &windowEntry{count: 1, resetAt: now.Add(window)}
		m.entries[key] = e
		return e.count, e.resetAt, e.count <= limit, nil
	}

	if e.count >= limit {
		return e.count, e.resetAt, false, nil
	}
	e.count++
	return e.count, e.resetAt, true, nil
}

// Sweep removes entries whose window has elapsed and returns how many were removed.
func (m *MemoryWindow) Sweep(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for k, e := range m.entries {
		if !now.Before(e.resetAt) {
			delete(m.entries, k)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked fingerprints.
func (m *MemoryWindow) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// StartSweeper runs [MemoryWindow.Sweep] every interval until ctx is done.
// The returned channel is closed when the sweeper exits.
func (m *MemoryWindow) StartSweeper(ctx context.Context, every time.Duration, now func() time.Time) <-chan struct{} {
	if every <= 0 {
		every = DefaultWindow
	}
	if now == nil {
		now = time.Now
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.Sweep(now())
			}
		}
	}()
	return done
}
