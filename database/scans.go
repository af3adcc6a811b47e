package database

import (
	"context"
	"fmt"
	"time"

	"shiftscan/model"

	"github.com/jmoiron/sqlx"
)

type scanRow struct {
	ID        string `db:"id"`
	Code      string `db:"code"`
	ScannedAt int64  `db:"scanned_at"`
}

func (r scanRow) record() model.ScanRecord {
	return model.ScanRecord{
		ID:        r.ID,
		Code:      r.Code,
		Timestamp: time.UnixMilli(r.ScannedAt),
	}
}

// InsertScanInTx inserts rec unless its code is already stored.
// It reports false, with no error, when the UNIQUE(code) constraint rejected the row.
func InsertScanInTx(tx *sqlx.Tx, rec model.ScanRecord) (bool, error) {
	const q = `
		INSERT INTO scanned_items (id, code, scanned_at)
		VALUES (?, ?, ?)
		ON CONFLICT(code) DO NOTHING`
	res, err := tx.Exec(q, rec.ID, rec.Code, rec.Timestamp.UnixMilli())
	if err != nil {
		return false, fmt.Errorf("InsertScanInTx (Code: %s) failed: %w", rec.Code, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("InsertScanInTx (Code: %s) rows affected: %w", rec.Code, err)
	}
	return n == 1, nil
}

// GetAllScans returns every stored scan, newest first. Rows sharing a timestamp
// come back in reverse insertion order.
func GetAllScans(ctx context.Context, q sqlx.QueryerContext) ([]model.ScanRecord, error) {
	var rows []scanRow
	err := sqlx.SelectContext(ctx, q, &rows, `
		SELECT id, code, scanned_at FROM scanned_items
		ORDER BY scanned_at DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to get all scans: %w", err)
	}
	records := make([]model.ScanRecord, len(rows))
	for i, r := range rows {
		records[i] = r.record()
	}
	return records, nil
}

// GetScanByCode returns the record for code, or nil when none exists.
func GetScanByCode(q sqlx.Queryer, code string) (*model.ScanRecord, error) {
	var rows []scanRow
	if err := sqlx.Select(q, &rows, `SELECT id, code, scanned_at FROM scanned_items WHERE code = ?`, code); err != nil {
		return nil, fmt.Errorf("GetScanByCode (Code: %s) failed: %w", code, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	rec := rows[0].record()
	return &rec, nil
}

func CountScans(q sqlx.Queryer) (int, error) {
	var n int
	if err := sqlx.Get(q, &n, `SELECT COUNT(*) FROM scanned_items`); err != nil {
		return 0, fmt.Errorf("failed to count scans: %w", err)
	}
	return n, nil
}

// DeleteAllScansInTx removes every scan and returns how many were deleted.
func DeleteAllScansInTx(tx *sqlx.Tx) (int64, error) {
	res, err := tx.Exec(`DELETE FROM scanned_items`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete scanned items: %w", err)
	}
	return res.RowsAffected()
}
