package ratelimit

import (
	"context"
	"sync"
	"time"
)

const memoryMaxKeys = 10000

type memoryBucket struct {
	count     int
	windowEnd time.Time
}

// MemoryLimiter keeps counters in process memory. Counters are lost on restart
// and not shared between replicas.
type MemoryLimiter struct {
	mu      sync.Mutex
	cfg     Config
	data    map[string]*memoryBucket
	maxKeys int
}

// NewMemoryLimiter builds a MemoryLimiter.
func NewMemoryLimiter(cfg Config) *MemoryLimiter {
	return &MemoryLimiter{cfg: cfg.withDefaults(), data: make(map[string]*memoryBucket), maxKeys: memoryMaxKeys}
}

// Blocked reports whether key reached the failure threshold in its current window.
func (m *MemoryLimiter) Blocked(_ context.Context, key string) (bool, error) {
	now := m.cfg.Now()
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.data[key]
	if !ok {
		return false, nil
	}
	if now.After(b.windowEnd) {
		delete(m.data, key)
		return false, nil
	}
	return b.count >= m.cfg.MaxFailures, nil
}

// RecordFailure counts one failure for key, opening a new window if needed.
func (m *MemoryLimiter) RecordFailure(_ context.Context, key string) error {
	now := m.cfg.Now()
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.data[key]
	if !ok || now.After(b.windowEnd) {
		if len(m.data) >= m.maxKeys {
			m.gc(now)
		}
		b = &memoryBucket{windowEnd: now.Add(m.cfg.Window)}
		m.data[key] = b
	}
	b.count++
	return nil
}

// Reset forgets key.
func (m *MemoryLimiter) Reset(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// gc drops expired buckets. If every bucket is still live it drops the one
// whose window ends first, so the map never grows past maxKeys.
func (m *MemoryLimiter) gc(now time.Time) {
	var (
		oldestKey string
		oldestEnd time.Time
	)
	for key, b := range m.data {
		if now.After(b.windowEnd) {
			delete(m.data, key)
			continue
		}
		if oldestKey == "" || b.windowEnd.Before(oldestEnd) {
			oldestKey, oldestEnd = key, b.windowEnd
		}
	}
	if len(m.data) >= m.maxKeys && oldestKey != "" {
		delete(m.data, oldestKey)
	}
}
