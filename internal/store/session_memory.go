package store

import (
	"context"
	"sync"
	"time"
)

// MemorySessions is the single-process fallback when REDIS_URL is unset.
type MemorySessions struct {
	mu   sync.RWMutex
	ttl  time.Duration
	now  func() time.Time
	data map[string]memoryEntry
}

type memoryEntry struct {
	sess    Session
	expires time.Time
}

func NewMemorySessions(ttl time.Duration) *MemorySessions {
	return &MemorySessions{ttl: ttl, now: time.Now, data: make(map[string]memoryEntry)}
}

var _ Sessions = (*MemorySessions)(nil)

func (m *MemorySessions) Save(_ context.Context, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := memoryEntry{sess: s}
	if m.ttl > 0 {
		e.expires = m.now().Add(m.ttl)
	}
	m.data[s.BaseName] = e
	return nil
}

func (m *MemorySessions) Get(_ context.Context, baseName string) (Session, error) {
	m.mu.RLock()
	e, ok := m.data[baseName]
	m.mu.RUnlock()
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	if !e.expires.IsZero() && m.now().After(e.expires) {
		m.mu.Lock()
		delete(m.data, baseName)
		m.mu.Unlock()
		return Session{}, ErrSessionNotFound
	}
	return e.sess, nil
}

func (m *MemorySessions) Delete(_ context.Context, baseName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, baseName)
	return nil
}

func (m *MemorySessions) Ping(context.Context) error { return nil }
