package database

import (
	"fmt"

	"github.com/jmoiron/sqlx"
)

// scanned_items.code carries the UNIQUE constraint that enforces one record per code.
const schema = `
CREATE TABLE IF NOT EXISTS scanned_items (
	id         TEXT PRIMARY KEY,
	code       TEXT NOT NULL UNIQUE,
	scanned_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_scanned_items_scanned_at ON scanned_items(scanned_at);

CREATE TABLE IF NOT EXISTS mapping_data (
	id   INTEGER PRIMARY KEY AUTOINCREMENT,
	code TEXT NOT NULL,
	path TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_mapping_data_code ON mapping_data(code);
`

// ApplySchema creates the tables if they do not exist yet.
func ApplySchema(db *sqlx.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return Unavailable(fmt.Errorf("failed to execute schema: %w", err))
	}
	return nil
}
