// Package cache provides quote cache backends.
package cache

import (
	"context"
	"sync"
	"time"
)

// Entry is a cached value with its lifetime
type Entry struct {
	Value       string
	CreatedAt   time.Time
	ExpiresAt   time.Time
	AccessCount int
}

// IsExpired checks if the entry has expired at now
func (e *Entry) IsExpired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && now.After(e.ExpiresAt)
}

// Memory is an in-process cache with per-entry TTL
type Memory struct {
	mu         sync.RWMutex
	entries    map[string]*Entry
	maxEntries int
	now        func() time.Time
}

// NewMemory creates a memory cache holding at most maxEntries; zero or less
// means unbounded.
func NewMemory(maxEntries int) *Memory {
	return &Memory{
		entries:    make(map[string]*Entry),
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// Get returns a live entry
func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key]
	if !ok {
		return "", false, nil
	}
	if entry.IsExpired(m.now()) {
		delete(m.entries, key)
		return "", false, nil
	}
	entry.AccessCount++
	return entry.Value, true, nil
}

// Set stores value; a ttl of zero never expires
func (m *Memory) Set(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if _, exists := m.entries[key]; !exists && m.maxEntries > 0 && len(m.entries) >= m.maxEntries {
		m.evictLocked(now)
	}

	entry := &Entry{Value: value, CreatedAt: now}
	if ttl > 0 {
		entry.ExpiresAt = now.Add(ttl)
	}
	m.entries[key] = entry
	return nil
}

// evictLocked drops expired entries, then the oldest one if still full
func (m *Memory) evictLocked(now time.Time) {
	var (
		oldestKey string
		oldest    time.Time
	)
	for key, entry := range m.entries {
		if entry.IsExpired(now) {
			delete(m.entries, key)
			continue
		}
		if oldestKey == "" || entry.CreatedAt.Before(oldest) {
			oldestKey, oldest = key, entry.CreatedAt
		}
	}
	if len(m.entries) >= m.maxEntries && oldestKey != "" {
		delete(m.entries, oldestKey)
	}
}

// InvalidateExpired removes all expired entries
func (m *Memory) InvalidateExpired() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	count := 0
	for key, entry := range m.entries {
		if entry.IsExpired(now) {
			delete(m.entries, key)
			count++
		}
	}
	return count
}

// Stats contains cache statistics
type Stats struct {
	TotalEntries   int `json:"total_entries"`
	ExpiredEntries int `json:"expired_entries"`
}

// Stats returns cache statistics
func (m *Memory) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := m.now()
	stats := Stats{TotalEntries: len(m.entries)}
	for _, entry := range m.entries {
		if entry.IsExpired(now) {
			stats.ExpiredEntries++
		}
	}
	return stats
}
