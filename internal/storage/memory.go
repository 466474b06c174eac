package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	json "github.com/goccy/go-json"
	"go.uber.org/atomic"

	"widgetd/internal/widget"
)

// MemoryStore keeps widget states in process memory behind a single
// monotonically increasing revision counter. It is the default backend;
// durability comes from the snapshot scheduler.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memEntry
	rev     atomic.Uint64
}

type memEntry struct {
	data     []byte
	revision uint64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memEntry)}
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.entries[key]
	if !ok {
		return nil, 0, notFound(key)
	}
	out := make([]byte, len(entry.data))
	copy(out, entry.data)
	return out, entry.revision, nil
}

func (m *MemoryStore) Put(_ context.Context, key string, value []byte, expectedRevision uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.entries[key]
	if expectedRevision == 0 {
		if exists {
			return fmt.Errorf("key %q exists: %w", key, widget.ErrConflict)
		}
	} else if !exists || entry.revision != expectedRevision {
		return fmt.Errorf("key %q revision moved: %w", key, widget.ErrConflict)
	}

	stored := make([]byte, len(value))
	copy(stored, value)
	m.entries[key] = memEntry{data: stored, revision: m.rev.Inc()}
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

func (m *MemoryStore) Keys(_ context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.entries))
	for key := range m.entries {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Snapshot captures the full store contents for persistence.
func (m *MemoryStore) Snapshot() *Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := &Snapshot{
		Version:  SnapshotVersion,
		Revision: m.rev.Load(),
		Entries:  make(map[string]SnapshotEntry, len(m.entries)),
	}
	for key, entry := range m.entries {
		data := make([]byte, len(entry.data))
		copy(data, entry.data)
		snap.Entries[key] = SnapshotEntry{Data: json.RawMessage(data), Revision: entry.revision}
	}
	return snap
}

// Restore replaces the store contents with a snapshot. The revision
// counter resumes above the snapshot's high-water mark so revisions stay
// monotonic across restarts.
func (m *MemoryStore) Restore(snap *Snapshot) {
	if snap == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = make(map[string]memEntry, len(snap.Entries))
	for key, entry := range snap.Entries {
		data := make([]byte, len(entry.Data))
		copy(data, entry.Data)
		m.entries[key] = memEntry{data: data, revision: entry.Revision}
	}
	m.rev.Store(snap.Revision)
}
