package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// keyPrefix namespaces all gateway entries in a shared Redis instance.
const keyPrefix = "offgate:"

// RedisStore implements Store using Redis for distributed storage.
// This is suitable for multi-instance deployments behind a load balancer.
type RedisStore struct {
	client *redis.Client
}

// NewRedis creates a new Redis-based store.
func NewRedis(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	// Test connection
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	slog.Info("redis cache connected", "addr", opts.Addr)

	return &RedisStore{client: client}, nil
}

// redisKey builds the storage key for an entry: offgate:<partition>:<hash>.
func redisKey(partition string, key Key) string {
	return keyPrefix + partition + ":" + key.Hash()
}

// Get retrieves a snapshot from the named partition.
func (r *RedisStore) Get(ctx context.Context, partition string, key Key) (*Snapshot, error) {
	data, err := r.client.Get(ctx, redisKey(partition, key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // No entry, not an error
		}
		return nil, fmt.Errorf("failed to get cache entry from redis: %w", err)
	}

	return DecodeSnapshot(data)
}

// Put stores a snapshot. Entries carry no TTL: cleanup happens only by
// whole-partition purging on activation.
func (r *RedisStore) Put(ctx context.Context, partition string, key Key, snap *Snapshot) error {
	data, err := snap.Encode()
	if err != nil {
		return err
	}

	if err := r.client.Set(ctx, redisKey(partition, key), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to set cache entry in redis: %w", err)
	}
	return nil
}

// Purge deletes every entry in the named partition.
func (r *RedisStore) Purge(ctx context.Context, partition string) error {
	iter := r.client.Scan(ctx, 0, keyPrefix+partition+":*", 100).Iterator()
	for iter.Next(ctx) {
		if err := r.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("failed to delete cache entry %s: %w", iter.Val(), err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan partition %s: %w", partition, err)
	}
	return nil
}

// Partitions lists partitions that currently hold entries.
func (r *RedisStore) Partitions(ctx context.Context) ([]string, error) {
	seen := make(map[string]bool)
	var names []string

	iter := r.client.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		rest := strings.TrimPrefix(iter.Val(), keyPrefix)
		idx := strings.LastIndex(rest, ":")
		if idx < 0 {
			continue
		}
		name := rest[:idx]
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan partitions: %w", err)
	}
	return names, nil
}

// Close closes the Redis connection.
func (r *RedisStore) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}
