package cache

import (
	"bytes"
	"context"
	"sync"
	"time"
)

type entry struct {
	value   []byte
	expires time.Time
}

// Memory is a process-local Cache. It is only correct for a single IdP
// instance; run redis when scaling out.
type Memory struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time

	stopCh chan struct{}
	doneCh chan struct{}
	once   sync.Once
}

// NewMemory returns a Memory cache sweeping expired entries every minute.
func NewMemory() *Memory {
	return NewMemoryWithClock(time.Now, time.Minute)
}

// NewMemoryWithClock lets tests control time. A non-positive sweep interval
// disables the background sweep; expired entries are still never returned.
func NewMemoryWithClock(now func() time.Time, sweep time.Duration) *Memory {
	m := &Memory{
		entries: make(map[string]entry),
		now:     now,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}

	if sweep > 0 {
		go m.sweepLoop(sweep)
	} else {
		close(m.doneCh)
	}
	return m
}

func (m *Memory) sweepLoop(every time.Duration) {
	defer close(m.doneCh)

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Sweep()
		case <-m.stopCh:
			return
		}
	}
}

// Sweep drops expired entries and returns how many were removed.
func (m *Memory) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	n := 0
	for k, e := range m.entries {
		if !now.Before(e.expires) {
			delete(m.entries, k)
			n++
		}
	}
	return n
}

// live returns the entry under key when it has not expired. Callers hold mu.
func (m *Memory) live(key string) (entry, bool) {
	e, ok := m.entries[key]
	if !ok {
		return entry{}, false
	}
	if !m.now().Before(e.expires) {
		delete(m.entries, key)
		return entry{}, false
	}
	return e, true
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.live(key)
	if !ok {
		return nil, ErrMiss
	}
	return bytes.Clone(e.value), nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return ErrTTL
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = entry{value: bytes.Clone(value), expires: m.now().Add(ttl)}
	return nil
}

func (m *Memory) Take(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.live(key)
	if !ok {
		return nil, ErrMiss
	}
	delete(m.entries, key)
	return e.value, nil
}

func (m *Memory) Swap(_ context.Context, key string, old, next []byte, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return false, ErrTTL
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.live(key)
	if !ok || !bytes.Equal(e.value, old) {
		return false, nil
	}
	m.entries[key] = entry{value: bytes.Clone(next), expires: m.now().Add(ttl)}
	return true, nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, key)
	return nil
}

func (m *Memory) Ping(context.Context) error { return nil }

// Close stops the sweep goroutine and waits for it to exit.
func (m *Memory) Close() error {
	m.once.Do(func() { close(m.stopCh) })
	<-m.doneCh
	return nil
}
