package ratelimit

import (
	"context"
	"sync"
	"time"
)

// defaultCleanupInterval is how often idle requesters are dropped.
const defaultCleanupInterval = 5 * time.Minute

// Memory is an in-process rolling window limiter. Each requester keeps a log
// of the calls inside the current window.
type Memory struct {
	max    int
	window time.Duration
	now    func() time.Time

	mu      sync.RWMutex
	entries map[string]*entry

	stop     chan struct{}
	stopOnce sync.Once
}

// entry is the call log of one requester
type entry struct {
	mu      sync.Mutex
	hits    []time.Time
	removed bool
}

// NewMemory creates a limiter allowing max calls per window and starts its
// cleanup goroutine. Call Stop when done.
func NewMemory(limit int, window time.Duration) *Memory {
	m := newMemory(limit, window, time.Now)
	go m.cleanupLoop(defaultCleanupInterval)
	return m
}

func newMemory(limit int, window time.Duration, now func() time.Time) *Memory {
	return &Memory{
		max:     limit,
		window:  window,
		now:     now,
		entries: make(map[string]*entry),
		stop:    make(chan struct{}),
	}
}

// Window returns the rolling window.
func (m *Memory) Window() time.Duration {
	return m.window
}

// CheckAndIncrement records a call for key if it is within quota.
func (m *Memory) CheckAndIncrement(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if m.max <= 0 {
		return true, nil
	}

	for {
		e := m.lookup(key)

		e.mu.Lock()
		if e.removed {
			// Dropped by cleanup between lookup and lock.
			e.mu.Unlock()
			continue
		}

		now := m.now()
		e.prune(now.Add(-m.window))
		if len(e.hits) >= m.max {
			e.mu.Unlock()
			return false, nil
		}
		e.hits = append(e.hits, now)
		e.mu.Unlock()
		return true, nil
	}
}

// lookup returns the entry for key, creating it if needed.
func (m *Memory) lookup(key string) *entry {
	m.mu.RLock()
	e, exists := m.entries[key]
	m.mu.RUnlock()
	if exists {
		return e
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if e, exists = m.entries[key]; !exists {
		e = &entry{}
		m.entries[key] = e
	}
	return e
}

// prune drops hits at or before cutoff. Hits are appended in order.
func (e *entry) prune(cutoff time.Time) {
	i := 0
	for i < len(e.hits) && !e.hits[i].After(cutoff) {
		i++
	}
	if i > 0 {
		e.hits = append(e.hits[:0], e.hits[i:]...)
	}
}

// Len returns the number of tracked requesters.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// cleanup removes requesters without calls in the current window
func (m *Memory) cleanup() {
	cutoff := m.now().Add(-m.window)

	m.mu.Lock()
	defer m.mu.Unlock()
	for key, e := range m.entries {
		e.mu.Lock()
		e.prune(cutoff)
		if len(e.hits) == 0 {
			e.removed = true
			delete(m.entries, key)
		}
		e.mu.Unlock()
	}
}

func (m *Memory) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.cleanup()
		case <-m.stop:
			return
		}
	}
}

// Stop ends the cleanup goroutine. It is safe to call more than once.
func (m *Memory) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
}

// Close implements Store.
func (m *Memory) Close() error {
	m.Stop()
	return nil
}
