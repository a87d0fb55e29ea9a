// Package store remembers which page views have already shown a cashback
// notification, so one page view notifies at most once.
package store

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// DefaultTTL bounds how long a tab's page view is remembered.
const DefaultTTL = 30 * time.Minute

// PageViews tracks the notified page view per tab.
type PageViews interface {
	// MarkNotified records viewID as the notified page view of tabID. It
	// returns true only for the call that made the change.
	MarkNotified(ctx context.Context, tabID, viewID string) (bool, error)
	// Reset forgets the tab, e.g. after an in-page route change.
	Reset(ctx context.Context, tabID string) error
	Close() error
}

// Error wraps a backend failure.
type Error struct {
	Op    string
	Cause error
}

func (e *Error) Error() string {
	return fmt.Sprintf("page view store %s failed: %v", e.Op, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New returns the backend named by kind ("memory" or "redis").
func New(kind, redisAddr, redisPassword string, redisDB int, ttl time.Duration) (PageViews, error) {
	switch strings.ToLower(kind) {
	case "", "memory":
		return NewMemory(ttl), nil
	case "redis":
		return NewRedis(RedisOptions{Address: redisAddr, Password: redisPassword, DB: redisDB, TTL: ttl}), nil
	default:
		return nil, fmt.Errorf("unknown page view store %q", kind)
	}
}

type memoryEntry struct {
	viewID  string
	expires time.Time
}

// Memory is an in-process PageViews.
type Memory struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemory returns an empty in-process store.
func NewMemory(ttl time.Duration) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Memory{ttl: ttl, entries: make(map[string]memoryEntry), now: time.Now}
}

// MarkNotified implements PageViews.
func (m *Memory) MarkNotified(_ context.Context, tabID, viewID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if e, ok := m.entries[tabID]; ok && e.viewID == viewID && now.Before(e.expires) {
		return false, nil
	}
	m.entries[tabID] = memoryEntry{viewID: viewID, expires: now.Add(m.ttl)}
	m.sweep(now)
	return true, nil
}

// Reset implements PageViews.
func (m *Memory) Reset(_ context.Context, tabID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, tabID)
	return nil
}

// Close implements PageViews.
func (m *Memory) Close() error {
	return nil
}

// Len returns the number of live entries.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweep(m.now())
	return len(m.entries)
}

func (m *Memory) sweep(now time.Time) {
	for k, e := range m.entries {
		if !now.Before(e.expires) {
			delete(m.entries, k)
		}
	}
}
