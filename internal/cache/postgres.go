package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS cache_entries (
	partition  TEXT NOT NULL,
	entry_key  TEXT NOT NULL,
	data       BYTEA NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (partition, entry_key)
);
`

// PostgresStore implements Store on PostgreSQL. Suitable for
// multi-instance deployments that also need the cache to be durable.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgres creates a new PostgreSQL-backed store.
// It creates a connection pool and ensures the schema exists.
func NewPostgres(ctx context.Context, cfg PostgresConfig) (*PostgresStore, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("PostgreSQL URL is required")
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse PostgreSQL URL: %w", err)
	}

	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConns)
	} else {
		poolCfg.MaxConns = 10 // default
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create PostgreSQL connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create cache schema: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// Get retrieves a snapshot from the named partition.
func (p *PostgresStore) Get(ctx context.Context, partition string, key Key) (*Snapshot, error) {
	var data []byte
	err := p.pool.QueryRow(ctx,
		`SELECT data FROM cache_entries WHERE partition = $1 AND entry_key = $2`,
		partition, key.Hash(),
	).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil // No entry, not an error
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache entry: %w", err)
	}

	return DecodeSnapshot(data)
}

// Put stores a snapshot, overwriting any prior entry for the key.
func (p *PostgresStore) Put(ctx context.Context, partition string, key Key, snap *Snapshot) error {
	data, err := snap.Encode()
	if err != nil {
		return err
	}

	_, err = p.pool.Exec(ctx,
		`INSERT INTO cache_entries (partition, entry_key, data) VALUES ($1, $2, $3)
		 ON CONFLICT (partition, entry_key) DO UPDATE SET data = EXCLUDED.data, created_at = now()`,
		partition, key.Hash(), data,
	)
	if err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	return nil
}

// Purge deletes all entries in the named partition.
func (p *PostgresStore) Purge(ctx context.Context, partition string) error {
	if _, err := p.pool.Exec(ctx,
		`DELETE FROM cache_entries WHERE partition = $1`, partition,
	); err != nil {
		return fmt.Errorf("failed to purge partition %s: %w", partition, err)
	}
	return nil
}

// Partitions lists partitions that currently hold entries.
func (p *PostgresStore) Partitions(ctx context.Context) ([]string, error) {
	rows, err := p.pool.Query(ctx, `SELECT DISTINCT partition FROM cache_entries`)
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

// Close releases the connection pool.
func (p *PostgresStore) Close() error {
	if p.pool != nil {
		p.pool.Close()
	}
	return nil
}
