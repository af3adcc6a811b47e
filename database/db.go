package database

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// ErrStorageUnavailable marks failures of the underlying store.
var ErrStorageUnavailable = errors.New("storage unavailable")

// Unavailable wraps err so that errors.Is(err, ErrStorageUnavailable) holds.
func Unavailable(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrStorageUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
}

// Open opens the SQLite file at path and applies the server schema.
func Open(path string) (*sqlx.DB, error) {
	db, err := OpenFile(path)
	if err != nil {
		return nil, err
	}
	if err := ApplySchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// OpenFile opens the SQLite file at path in WAL mode without touching its schema.
// SQLite allows one writer; a single connection keeps check-and-insert
// sequences from failing with SQLITE_BUSY under concurrent requests.
func OpenFile(path string) (*sqlx.DB, error) {
	q := url.Values{}
	q.Set("_journal_mode", "WAL")
	q.Set("_busy_timeout", "5000")
	q.Set("_foreign_keys", "on")
	dsn := "file:" + path + "?" + q.Encode()

	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, Unavailable(fmt.Errorf("db open %s: %w", path, err))
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, Unavailable(fmt.Errorf("db ping %s: %w", path, err))
	}
	return db, nil
}
