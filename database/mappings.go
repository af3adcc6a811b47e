package database

import (
	"fmt"

	"shiftscan/model"

	"github.com/jmoiron/sqlx"
)

// ReplaceMappingsInTx discards the whole mapping table and inserts entries in order.
func ReplaceMappingsInTx(tx *sqlx.Tx, entries []model.MappingEntry) error {
	if _, err := tx.Exec(`DELETE FROM mapping_data`); err != nil {
		return fmt.Errorf("failed to clear mapping_data: %w", err)
	}
	if len(entries) == 0 {
		return nil
	}

	stmt, err := tx.Prepare(`INSERT INTO mapping_data (code, path) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement for mapping_data: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.Exec(e.Code, e.Path); err != nil {
			return fmt.Errorf("failed to insert mapping (Code: %s): %w", e.Code, err)
		}
	}
	return nil
}

// GetAllMappings returns the mapping rows in upload order.
func GetAllMappings(q sqlx.Queryer) ([]model.MappingEntry, error) {
	var entries []model.MappingEntry
	if err := sqlx.Select(q, &entries, `SELECT code, path FROM mapping_data ORDER BY id`); err != nil {
		return nil, fmt.Errorf("failed to get all mappings: %w", err)
	}
	return entries, nil
}
