// Package loader fills the mapping table from files on disk: the seed file at
// startup and any file passed by the CLI or the drop folder watcher.
package loader

import (
	"context"
	"errors"
	"fmt"
	"os"

	"shiftscan/mapping"
	"shiftscan/parsers"

	"go.uber.org/zap"
)

// ErrNoSeedFile is returned by ReloadSeed when no seed file is configured.
var ErrNoSeedFile = errors.New("no mapping seed file configured")

// LoadMappingFile parses an xlsx or csv file and replaces the mapping table with it.
// It returns the number of rows stored.
func LoadMappingFile(ctx context.Context, table *mapping.Table, path, charset string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	entries, err := parsers.ParseMappingFile(path, f, charset)
	if err != nil {
		return 0, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if err := table.Replace(ctx, entries); err != nil {
		return 0, fmt.Errorf("failed to load %s: %w", path, err)
	}
	return len(entries), nil
}

// InitDatabase loads seedPath into the mapping table when the table is empty.
// A missing seed file is logged and skipped.
func InitDatabase(ctx context.Context, table *mapping.Table, seedPath, charset string, logger *zap.Logger) error {
	if seedPath == "" {
		return nil
	}
	if n := table.Snapshot().Len(); n > 0 {
		logger.Info("mapping table already populated, seed skipped", zap.Int("entries", n))
		return nil
	}
	if _, err := os.Stat(seedPath); errors.Is(err, os.ErrNotExist) {
		logger.Warn("mapping seed file not found, skipping", zap.String("path", seedPath))
		return nil
	}

	logger.Info("loading mapping seed", zap.String("path", seedPath))
	n, err := LoadMappingFile(ctx, table, seedPath, charset)
	if err != nil {
		return err
	}
	logger.Info("mapping seed loaded", zap.String("path", seedPath), zap.Int("entries", n))
	return nil
}

// ReloadSeed replaces the mapping table with the seed file regardless of its
// current contents.
func ReloadSeed(ctx context.Context, table *mapping.Table, seedPath, charset string) (int, error) {
	if seedPath == "" {
		return 0, ErrNoSeedFile
	}
	return LoadMappingFile(ctx, table, seedPath, charset)
}
