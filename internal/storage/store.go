package storage

import (
	"context"
	"fmt"

	json "github.com/goccy/go-json"

	"widgetd/internal/providers"
	"widgetd/internal/storage/postgres"
	"widgetd/internal/structures"
	"widgetd/internal/widget"
)

// Store is the narrow persistence contract the engines are written
// against: read a state with its revision, write it back conditioned on
// that revision being unchanged. Put with expectedRevision 0 creates the
// key and fails with widget.ErrConflict if it already exists; any
// revision mismatch fails the same way so the caller can re-read and
// retry.
type Store interface {
	Get(ctx context.Context, key string) (value []byte, revision uint64, err error)
	Put(ctx context.Context, key string, value []byte, expectedRevision uint64) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// SnapshotEntry is one persisted key in a snapshot file.
type SnapshotEntry struct {
	Data     json.RawMessage `json:"data"`
	Revision uint64          `json:"revision"`
}

// Snapshot is the point-in-time persistence envelope for a memory store.
type Snapshot struct {
	Version  int                      `json:"version"`
	Revision uint64                   `json:"revision"`
	Entries  map[string]SnapshotEntry `json:"entries"`
}

const SnapshotVersion = 1

// Snapshotter is implemented by stores that can be captured to and
// restored from a snapshot file. The postgres store is not one; it owns
// its durability.
type Snapshotter interface {
	Snapshot() *Snapshot
	Restore(*Snapshot)
}

// NewStore builds the configured store backend.
func NewStore(conf *structures.Config, logger providers.Logger) (Store, error) {
	switch conf.Storage.Driver {
	case "memory", "":
		logger.Infof(providers.TypeApp, "Using in-memory store")
		return NewMemoryStore(), nil
	case "postgres":
		ctx := context.Background()
		pg, err := postgres.Connect(ctx, conf.Storage.PostgresDSN)
		if err != nil {
			return nil, err
		}
		if err := pg.Ready(ctx); err != nil {
			return nil, fmt.Errorf("postgres not ready: %w", err)
		}
		if err := pg.Migrate(ctx); err != nil {
			return nil, err
		}
		logger.Infof(providers.TypeApp, "Using postgres store")
		return pg, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", conf.Storage.Driver)
	}
}

// notFound is a helper shared by store implementations.
func notFound(key string) error {
	return fmt.Errorf("key %q: %w", key, widget.ErrNotFound)
}
