package snapshot

import (
	"os"

	json "github.com/goccy/go-json"

	"widgetd/internal/providers"
	"widgetd/internal/snapshot/interfaces"
	"widgetd/internal/storage"
)

// FileManager writes zstd-compressed JSON snapshots of a snapshottable
// store, atomically via a tmp file and rename. With a store that owns
// its own durability (postgres) Save and Load are no-ops.
type FileManager struct {
	source     storage.Snapshotter
	compressor interfaces.CompressorInterface
	logger     providers.Logger
}

func NewFileManager(compressor interfaces.CompressorInterface, store storage.Store, logger providers.Logger) *FileManager {
	source, ok := store.(storage.Snapshotter)
	if !ok {
		logger.Infof(providers.TypeApp, "Store is self-durable, file snapshots disabled")
	}
	return &FileManager{
		source:     source,
		compressor: compressor,
		logger:     logger,
	}
}

func (f *FileManager) SaveToFile(fileName string) error {
	if f.source == nil {
		return nil
	}

	jsonData, err := json.Marshal(f.source.Snapshot())
	if err != nil {
		return err
	}
	data, err := f.compressor.Compress(jsonData)
	if err != nil {
		return err
	}

	tmpFile := fileName + ".tmp"
	file, err := os.Create(tmpFile)
	if err != nil {
		return err
	}

	_, err = file.Write(data)
	if err != nil {
		file.Close()
		os.Remove(tmpFile)
		return err
	}

	if err = file.Sync(); err != nil {
		file.Close()
		os.Remove(tmpFile)
		return err
	}

	if err = file.Close(); err != nil {
		os.Remove(tmpFile)
		return err
	}

	return os.Rename(tmpFile, fileName)
}

func (f *FileManager) LoadFromFile(fileName string) error {
	if f.source == nil {
		return nil
	}

	data, err := os.ReadFile(fileName)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	decompressedData, err := f.compressor.Decompress(data)
	if err != nil {
		return err
	}

	var snap storage.Snapshot
	if err := json.Unmarshal(decompressedData, &snap); err != nil {
		return err
	}
	if snap.Entries == nil {
		snap.Entries = make(map[string]storage.SnapshotEntry)
	}
	f.source.Restore(&snap)
	f.logger.Infof(providers.TypeApp, "Restored %d widget states from %s", len(snap.Entries), fileName)
	return nil
}

func (f *FileManager) Close() {
	f.compressor.Close()
}
