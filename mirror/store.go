// Package mirror is the terminal client's offline copy of accepted scans.
//
// Codes are recorded locally first, with the same one-record-per-code rule as
// the server, and marked synced once the server has them. Reconcile makes the
// local copy match the server again after a period offline.
package mirror

import (
	"context"
	"fmt"
	"time"

	"shiftscan/barcode"
	"shiftscan/database"
	"shiftscan/ingest"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusSynced  Status = "synced"
)

const schema = `
CREATE TABLE IF NOT EXISTS mirror_items (
	code       TEXT PRIMARY KEY,
	id         TEXT NOT NULL,
	scanned_at INTEGER NOT NULL,
	status     TEXT NOT NULL CHECK (status IN ('pending', 'synced'))
);
CREATE INDEX IF NOT EXISTS idx_mirror_items_status ON mirror_items(status);
`

// Entry is one locally known scan. ID and ScannedAt are local until synced,
// then the server's.
type Entry struct {
	Code      string    `db:"code"`
	ID        string    `db:"id"`
	ScannedAt time.Time `db:"-"`
	Status    Status    `db:"status"`
}

type entryRow struct {
	Code      string `db:"code"`
	ID        string `db:"id"`
	ScannedAt int64  `db:"scanned_at"`
	Status    Status `db:"status"`
}

func (r entryRow) entry() Entry {
	return Entry{Code: r.Code, ID: r.ID, ScannedAt: time.UnixMilli(r.ScannedAt), Status: r.Status}
}

// Store is a local SQLite mirror.
type Store struct {
	db *sqlx.DB
}

// Open opens or creates the mirror file at path.
func Open(path string) (*Store, error) {
	db, err := database.OpenFile(path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, database.Unavailable(fmt.Errorf("failed to apply mirror schema: %w", err))
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Add records code as pending. A code already in the mirror yields
// ingest.ErrDuplicateCode.
func (s *Store) Add(ctx context.Context, code string, at time.Time) (Entry, error) {
	code = barcode.Clean(code)
	if code == "" {
		return Entry{}, ingest.ErrEmptyCode
	}
	e := Entry{Code: code, ID: uuid.NewString(), ScannedAt: at.Truncate(time.Millisecond), Status: StatusPending}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO mirror_items (code, id, scanned_at, status)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(code) DO NOTHING`,
		e.Code, e.ID, e.ScannedAt.UnixMilli(), e.Status)
	if err != nil {
		return Entry{}, database.Unavailable(fmt.Errorf("mirror add (Code: %s): %w", code, err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Entry{}, database.Unavailable(err)
	}
	if n == 0 {
		return Entry{}, fmt.Errorf("%w: %s", ingest.ErrDuplicateCode, code)
	}
	return e, nil
}

// MarkSynced stores the server's id and timestamp for code.
func (s *Store) MarkSynced(ctx context.Context, code, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE mirror_items SET id = ?, scanned_at = ?, status = ? WHERE code = ?`,
		id, at.UnixMilli(), StatusSynced, code)
	if err != nil {
		return database.Unavailable(fmt.Errorf("mirror mark synced (Code: %s): %w", code, err))
	}
	return nil
}

// Entries returns every entry, newest first.
func (s *Store) Entries(ctx context.Context) ([]Entry, error) {
	return s.selectEntries(ctx, `SELECT code, id, scanned_at, status FROM mirror_items ORDER BY scanned_at DESC, rowid DESC`)
}

// Pending returns entries the server has not confirmed, oldest first.
func (s *Store) Pending(ctx context.Context) ([]Entry, error) {
	return s.selectEntries(ctx, `SELECT code, id, scanned_at, status FROM mirror_items WHERE status = 'pending' ORDER BY scanned_at, rowid`)
}

func (s *Store) selectEntries(ctx context.Context, q string) ([]Entry, error) {
	var rows []entryRow
	if err := s.db.SelectContext(ctx, &rows, q); err != nil {
		return nil, database.Unavailable(fmt.Errorf("mirror select: %w", err))
	}
	out := make([]Entry, len(rows))
	for i, r := range rows {
		out[i] = r.entry()
	}
	return out, nil
}

// Counts returns the total and pending entry counts.
func (s *Store) Counts(ctx context.Context) (total, pending int, err error) {
	err = s.db.QueryRowxContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN status = 'pending' THEN 1 ELSE 0 END), 0)
		FROM mirror_items`).Scan(&total, &pending)
	if err != nil {
		return 0, 0, database.Unavailable(fmt.Errorf("mirror count: %w", err))
	}
	return total, pending, nil
}

// Clear removes every entry.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM mirror_items`); err != nil {
		return database.Unavailable(fmt.Errorf("mirror clear: %w", err))
	}
	return nil
}
