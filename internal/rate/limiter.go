package rate

import (
	"sync"
	"time"
)

type Limiter interface {
	Allow(key string, limit int, window time.Duration) (bool, time.Duration)
}

// Memory is a fixed-window in-process limiter, good enough for a single
// instance in front of credential and write endpoints.
type Memory struct {
	mu      sync.Mutex
	buckets map[string]*window
}

type window struct {
	count   int
	startAt time.Time
	span    time.Duration
}

func NewMemory() *Memory {
	return &Memory{buckets: make(map[string]*window)}
}

func (m *Memory) Allow(key string, limit int, span time.Duration) (bool, time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	w, ok := m.buckets[key]
	if !ok || now.Sub(w.startAt) >= w.span || w.span != span {
		w = &window{startAt: now, span: span}
		m.buckets[key] = w
	}

	retry := w.span - now.Sub(w.startAt)
	if w.count >= limit {
		m.sweep(now)
		return false, retry
	}
	w.count++
	return true, retry
}

// sweep drops windows that have already elapsed. Called with mu held.
func (m *Memory) sweep(now time.Time) {
	for k, w := range m.buckets {
		if now.Sub(w.startAt) >= w.span {
			delete(m.buckets, k)
		}
	}
}
