// Package mapping owns the code → path side table used to annotate scans.
//
// The table is replaced as a whole. Readers work on an immutable Snapshot that
// is swapped in only after the replacement has been committed, so a reader sees
// either the complete old set or the complete new set.
package mapping

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"shiftscan/database"
	"shiftscan/model"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// ErrInvalidMappingRow matches every *InvalidRowError.
var ErrInvalidMappingRow = errors.New("invalid mapping row")

// InvalidRowError names the first row that failed validation (1-based, header excluded).
type InvalidRowError struct {
	Row    int
	Reason string
}

func (e *InvalidRowError) Error() string {
	return fmt.Sprintf("mapping row %d: %s", e.Row, e.Reason)
}

func (e *InvalidRowError) Is(target error) bool {
	return target == ErrInvalidMappingRow
}

// Snapshot is an immutable view of the mapping set.
type Snapshot struct {
	entries []model.MappingEntry
	byCode  map[string]string
}

func newSnapshot(entries []model.MappingEntry) *Snapshot {
	s := &Snapshot{
		entries: entries,
		byCode:  make(map[string]string, len(entries)),
	}
	// Later rows win when a code repeats.
	for _, e := range entries {
		s.byCode[e.Code] = e.Path
	}
	return s
}

// Lookup returns the path for an exact code match.
func (s *Snapshot) Lookup(code string) (string, bool) {
	p, ok := s.byCode[code]
	return p, ok
}

func (s *Snapshot) Len() int { return len(s.entries) }

// Entries returns a copy of the rows in upload order.
func (s *Snapshot) Entries() []model.MappingEntry {
	out := make([]model.MappingEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Table is the persisted mapping set plus its current snapshot.
type Table struct {
	db     *sqlx.DB
	logger *zap.Logger

	mu   sync.Mutex
	snap atomic.Pointer[Snapshot]
}

// NewTable loads the stored mapping set.
func NewTable(db *sqlx.DB, logger *zap.Logger) (*Table, error) {
	entries, err := database.GetAllMappings(db)
	if err != nil {
		return nil, database.Unavailable(err)
	}
	t := &Table{db: db, logger: logger}
	t.snap.Store(newSnapshot(entries))
	return t, nil
}

// Snapshot returns the current mapping set. It never returns nil.
func (t *Table) Snapshot() *Snapshot {
	return t.snap.Load()
}

// Validate trims every entry and checks that code and path are present.
// It returns the trimmed copy or the first *InvalidRowError.
func Validate(entries []model.MappingEntry) ([]model.MappingEntry, error) {
	out := make([]model.MappingEntry, len(entries))
	for i, e := range entries {
		e.Code = strings.TrimSpace(e.Code)
		e.Path = strings.TrimSpace(e.Path)
		switch {
		case e.Code == "":
			return nil, &InvalidRowError{Row: i + 1, Reason: "missing code"}
		case e.Path == "":
			return nil, &InvalidRowError{Row: i + 1, Reason: "missing path"}
		}
		out[i] = e
	}
	return out, nil
}

// Replace validates entries and, only if all are valid, replaces the stored
// set in one transaction. On any error the previous set stays in place.
func (t *Table) Replace(ctx context.Context, entries []model.MappingEntry) error {
	valid, err := Validate(entries)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	tx, err := t.db.BeginTxx(ctx, nil)
	if err != nil {
		return database.Unavailable(fmt.Errorf("begin mapping replace: %w", err))
	}
	defer tx.Rollback()

	if err := database.ReplaceMappingsInTx(tx, valid); err != nil {
		return database.Unavailable(err)
	}
	if err := tx.Commit(); err != nil {
		return database.Unavailable(fmt.Errorf("commit mapping replace: %w", err))
	}

	t.snap.Store(newSnapshot(valid))
	t.logger.Info("mapping table replaced", zap.Int("entries", len(valid)))
	return nil
}
