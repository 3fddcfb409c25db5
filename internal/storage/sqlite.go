package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"keyhaven/internal/haven"
	"keyhaven/internal/storage/migrations"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteStorage implements haven.Storage on a single-table SQLite database.
type SQLiteStorage struct {
	db   *sql.DB
	path string
}

var _ haven.Storage = (*SQLiteStorage)(nil)

// NewSQLiteStorage opens (and migrates) a SQLite-backed storage.
// path can be a file path or ":memory:" for an in-memory database.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}

	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating storage schema: %w", err)
	}
	if err := migrations.CheckStatus(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage schema out of date: %w", err)
	}

	return &SQLiteStorage{db: db, path: path}, nil
}

// OpenConnection opens and configures a SQLite connection with appropriate
// PRAGMAs. Exported for tools and tests that need a configured connection.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable foreign key constraints (SQLite default is OFF for backward
	// compatibility).
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

func (s *SQLiteStorage) Save(entry *haven.Entry) error {
	meta, err := encodeMeta(entry.Meta)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(`
		INSERT INTO entries (name, value, meta, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET value = excluded.value, meta = excluded.meta, updated_at = excluded.updated_at`,
		entry.Name, entry.Value, meta, entry.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("saving entry: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) Load(name string) (*haven.Entry, error) {
	entry := &haven.Entry{Name: name}
	var meta string

	row := s.db.QueryRow(`SELECT value, meta, updated_at FROM entries WHERE name = ?`, name)
	if err := row.Scan(&entry.Value, &meta, &entry.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("loading entry: %w", err)
	}

	if err := json.Unmarshal([]byte(meta), &entry.Meta); err != nil {
		return nil, fmt.Errorf("decoding entry meta: %w", err)
	}
	return entry, nil
}

func (s *SQLiteStorage) Remove(name string) error {
	if _, err := s.db.Exec(`DELETE FROM entries WHERE name = ?`, name); err != nil {
		return fmt.Errorf("removing entry: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) Exists(name string) (bool, error) {
	var one int
	row := s.db.QueryRow(`SELECT 1 FROM entries WHERE name = ?`, name)
	if err := row.Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("checking entry: %w", err)
	}
	return true, nil
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func encodeMeta(meta map[string]string) (string, error) {
	if meta == nil {
		return "{}", nil
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("encoding entry meta: %w", err)
	}
	return string(data), nil
}
