package testutil

import (
	"context"
	"sync"
	"time"

	"widgetd/internal/providers"
	"widgetd/internal/storage"
)

// MockLogger implements providers.Logger and records calls.
type MockLogger struct {
	mu   sync.Mutex
	Logs []LogEntry
}

type LogEntry struct {
	Level  string
	Type   providers.TypeEnum
	Format string
	Args   []interface{}
}

func (m *MockLogger) record(level string, t providers.TypeEnum, format string, args ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Logs = append(m.Logs, LogEntry{Level: level, Type: t, Format: format, Args: args})
}

func (m *MockLogger) Errorf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("error", t, format, args...)
}
func (m *MockLogger) Warnf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("warn", t, format, args...)
}
func (m *MockLogger) Debugf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("debug", t, format, args...)
}
func (m *MockLogger) Infof(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("info", t, format, args...)
}
func (m *MockLogger) Fatalf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("fatal", t, format, args...)
}
func (m *MockLogger) Close() {}

// MockCache implements providers.CacheProviderInterface over a plain map.
type MockCache struct {
	mu   sync.Mutex
	Data map[string][]byte
}

func NewMockCache() *MockCache {
	return &MockCache{Data: make(map[string][]byte)}
}

func (m *MockCache) Get(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.Data[key]
	return v, ok
}

func (m *MockCache) Set(key string, value []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Data[key] = value
}

func (m *MockCache) Del(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Data, key)
}

// MockMetrics implements providers.MetricsProviderInterface and counts calls.
type MockMetrics struct {
	mu              sync.Mutex
	Requests        int
	CacheHits       int
	CacheMisses     int
	ConflictRetries int
	TargetsTotals   map[string]int
}

func NewMockMetrics() *MockMetrics {
	return &MockMetrics{TargetsTotals: make(map[string]int)}
}

func (m *MockMetrics) IncRequestsTotal(_ string, _ int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Requests++
}
func (m *MockMetrics) ObserveRequestDuration(_ string, _ time.Duration) {}
func (m *MockMetrics) IncCacheHits() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CacheHits++
}
func (m *MockMetrics) IncCacheMisses() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CacheMisses++
}
func (m *MockMetrics) IncConflictRetries(_ string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ConflictRetries++
}
func (m *MockMetrics) ObservePersistenceDuration(_ time.Duration) {}
func (m *MockMetrics) SetTargetsTotal(widgetType string, count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TargetsTotals[widgetType] = count
}

// ConflictingStore wraps a storage.Store and fails the first
// ConflictsToInject Put calls with the store's conflict error by writing
// a competing revision first. It exercises optimistic-concurrency retry
// loops.
type ConflictingStore struct {
	storage.Store
	mu                sync.Mutex
	ConflictsToInject int
	PutCalls          int
}

func (c *ConflictingStore) Put(ctx context.Context, key string, value []byte, expectedRevision uint64) error {
	c.mu.Lock()
	c.PutCalls++
	inject := c.ConflictsToInject > 0
	if inject {
		c.ConflictsToInject--
	}
	c.mu.Unlock()

	if inject && expectedRevision > 0 {
		// Sneak in a competing write at the current revision so the
		// caller's expected revision is stale.
		raw, rev, err := c.Store.Get(ctx, key)
		if err == nil {
			if err := c.Store.Put(ctx, key, raw, rev); err != nil {
				return err
			}
		}
	}
	return c.Store.Put(ctx, key, value, expectedRevision)
}
