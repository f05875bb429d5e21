package cache

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS cache_entries (
	partition  TEXT NOT NULL,
	entry_key  TEXT NOT NULL,
	data       BLOB NOT NULL,
	created_at INTEGER NOT NULL DEFAULT (unixepoch()),
	PRIMARY KEY (partition, entry_key)
);
`

// SQLiteStore implements Store on a local SQLite database. Suitable for
// single-instance deployments that need the cache to survive restarts.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens (creating if needed) the SQLite-backed store.
// WAL mode is enabled for concurrent reads while writing.
func NewSQLite(cfg SQLiteConfig) (*SQLiteStore, error) {
	if cfg.Path == "" {
		cfg.Path = "data/offgate.db"
	}

	// Ensure directory exists
	dir := filepath.Dir(cfg.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	dsn := fmt.Sprintf("%s?_journal=WAL&_busy_timeout=5000&_synchronous=NORMAL", cfg.Path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// SQLite only allows one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create cache schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Get retrieves a snapshot from the named partition.
func (s *SQLiteStore) Get(ctx context.Context, partition string, key Key) (*Snapshot, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM cache_entries WHERE partition = ? AND entry_key = ?`,
		partition, key.Hash(),
	).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil // No entry, not an error
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache entry: %w", err)
	}

	return DecodeSnapshot(data)
}

// Put stores a snapshot, overwriting any prior entry for the key.
func (s *SQLiteStore) Put(ctx context.Context, partition string, key Key, snap *Snapshot) error {
	data, err := snap.Encode()
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO cache_entries (partition, entry_key, data) VALUES (?, ?, ?)
		 ON CONFLICT (partition, entry_key) DO UPDATE SET data = excluded.data, created_at = unixepoch()`,
		partition, key.Hash(), data,
	)
	if err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	return nil
}

// Purge deletes all entries in the named partition.
func (s *SQLiteStore) Purge(ctx context.Context, partition string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM cache_entries WHERE partition = ?`, partition,
	); err != nil {
		return fmt.Errorf("failed to purge partition %s: %w", partition, err)
	}
	return nil
}

// Partitions lists partitions that currently hold entries.
func (s *SQLiteStore) Partitions(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT partition FROM cache_entries`)
	if err != nil {
		return nil, fmt.Errorf("failed to list partitions: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan partition name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
