// Package watcher replaces the mapping table whenever a mapping file is
// dropped into a configured folder.
package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"shiftscan/loader"
	"shiftscan/mapping"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultSettle is how long a file must stay unchanged before it is loaded.
const DefaultSettle = 500 * time.Millisecond

// MappingDir watches one folder for .xlsx and .csv files.
type MappingDir struct {
	dir     string
	charset string
	table   *mapping.Table
	logger  *zap.Logger
	settle  time.Duration

	pending map[string]time.Time
	loaded  func(path string, n int, err error)
}

func New(dir, charset string, table *mapping.Table, logger *zap.Logger) *MappingDir {
	return &MappingDir{
		dir:     dir,
		charset: charset,
		table:   table,
		logger:  logger,
		settle:  DefaultSettle,
		pending: make(map[string]time.Time),
	}
}

// OnLoad registers a callback run after every load attempt.
func (m *MappingDir) OnLoad(fn func(path string, n int, err error)) {
	m.loaded = fn
}

func isMappingFile(name string) bool {
	base := filepath.Base(name)
	if strings.HasPrefix(base, ".") || strings.HasPrefix(base, "~$") {
		return false
	}
	switch strings.ToLower(filepath.Ext(base)) {
	case ".xlsx", ".csv":
		return true
	}
	return false
}

// Run watches until ctx is done. Load failures are logged and do not stop it.
func (m *MappingDir) Run(ctx context.Context) error {
	if err := os.MkdirAll(m.dir, 0755); err != nil {
		return fmt.Errorf("failed to create mapping watch dir: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(m.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", m.dir, err)
	}
	m.logger.Info("watching mapping folder", zap.String("dir", m.dir))

	tick := time.NewTicker(m.settle / 5)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("mapping folder watcher stopped", zap.String("dir", m.dir))
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !isMappingFile(ev.Name) {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				m.pending[ev.Name] = time.Now()
			}
			if ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				delete(m.pending, ev.Name)
			}

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			m.logger.Warn("mapping folder watcher error", zap.Error(err))

		case now := <-tick.C:
			for path, last := range m.pending {
				if now.Sub(last) < m.settle {
					continue
				}
				delete(m.pending, path)
				m.load(ctx, path)
			}
		}
	}
}

func (m *MappingDir) load(ctx context.Context, path string) {
	n, err := loader.LoadMappingFile(ctx, m.table, path, m.charset)
	if err != nil {
		m.logger.Error("mapping file rejected", zap.String("path", path), zap.Error(err))
	} else {
		m.logger.Info("mapping file loaded", zap.String("path", path), zap.Int("entries", n))
	}
	if m.loaded != nil {
		m.loaded(path, n, err)
	}
}
