// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package postgres implements the storage contracts with database/sql and the
// [pq] driver. Tables are created on construction.
//
// [pq]: https://github.com/lib/pq
package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/H0llyW00dzZ/verial-resilience/src/storage"
)

// ErrPingFailed is returned when the initial ping to the database fails.
var ErrPingFailed = errors.New("postgres: ping failed")

var (
	//go:embed create_cache_table.sql
	queryCreateCacheTable string
	//go:embed create_config_table.sql
	queryCreateConfigTable string
	//go:embed fetch_entry.sql
	queryFetchEntry string
	//go:embed upsert_entry.sql
	queryUpsertEntry string
	//go:embed delete_entry.sql
	queryDeleteEntry string
	//go:embed delete_prefix.sql
	queryDeletePrefix string
	//go:embed list_prefix.sql
	queryListPrefix string
	//go:embed fetch_option.sql
	queryFetchOption string
	//go:embed upsert_option.sql
	queryUpsertOption string
	//go:embed delete_option.sql
	queryDeleteOption string
)

// Open opens a connection pool for dsn using the pq driver.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	return db, nil
}

func prepare(ctx context.Context, db *sql.DB, ddl string) error {
	if err := db.PingContext(ctx); err != nil {
		return errors.Join(ErrPingFailed, err)
	}
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("postgres: create table: %w", err)
	}
	return nil
}

// likePrefix escapes LIKE metacharacters in prefix and appends the wildcard.
func likePrefix(prefix string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(prefix) + "%"
}

// KV is a [storage.KeyValueStore] backed by the cache_entries table.
// Expired rows are reported as [storage.ErrExpired] and deleted on read.
type KV struct {
	db  *sql.DB
	now func() time.Time
}

// NewKV verifies the connection and creates the cache_entries table.
func NewKV(ctx context.Context, db *sql.DB) (*KV, error) {
	if err := prepare(ctx, db, queryCreateCacheTable); err != nil {
		return nil, err
	}
	return &KV{db: db, now: time.Now}, nil
}

// Get implements [storage.KeyValueStore].
func (k *KV) Get(ctx context.Context, key string) ([]byte, error) {
	var (
		value     []byte
		expiresAt time.Time
	)
	err := k.db.QueryRowContext(ctx, queryFetchEntry, key).Scan(&value, &expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("postgres: get %s: %w", key, err)
	}

	if !k.now().Before(expiresAt) {
		if _, err := k.db.ExecContext(ctx, queryDeleteEntry, key); err != nil {
			return nil, fmt.Errorf("postgres: delete expired %s: %w", key, err)
		}
		return nil, storage.ErrExpired
	}
	return value, nil
}

// Set implements [storage.KeyValueStore].
func (k *KV) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := storage.ValidateTTL(ttl); err != nil {
		return err
	}

	now := k.now().UTC()
	if _, err := k.db.ExecContext(ctx, queryUpsertEntry, key, value, now, now.Add(ttl)); err != nil {
		return fmt.Errorf("postgres: set %s: %w", key, err)
	}
	return nil
}

// Delete implements [storage.KeyValueStore].
func (k *KV) Delete(ctx context.Context, key string) error {
	if _, err := k.db.ExecContext(ctx, queryDeleteEntry, key); err != nil {
		return fmt.Errorf("postgres: delete %s: %w", key, err)
	}
	return nil
}

// DeletePrefix implements [storage.KeyValueStore].
func (k *KV) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	res, err := k.db.ExecContext(ctx, queryDeletePrefix, likePrefix(prefix))
	if err != nil {
		return 0, fmt.Errorf("postgres: delete prefix %s: %w", prefix, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("postgres: rows affected: %w", err)
	}
	return int(n), nil
}

// Keys implements [storage.KeyValueStore].
func (k *KV) Keys(ctx context.Context, prefix string) ([]storage.KeyInfo, error) {
	rows, err := k.db.QueryContext(ctx, queryListPrefix, likePrefix(prefix), k.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("postgres: list prefix %s: %w", prefix, err)
	}
	defer rows.Close()

	var infos []storage.KeyInfo
	for rows.Next() {
		var info storage.KeyInfo
		if err := rows.Scan(&info.Key, &info.Size); err != nil {
			return nil, fmt.Errorf("postgres: scan key: %w", err)
		}
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

// Config is a [storage.ConfigStore] backed by the config_options table.
type Config struct {
	db *sql.DB
}

// NewConfig verifies the connection and creates the config_options table.
func NewConfig(ctx context.Context, db *sql.DB) (*Config, error) {
	if err := prepare(ctx, db, queryCreateConfigTable); err != nil {
		return nil, err
	}
	return &Config{db: db}, nil
}

// Get implements [storage.ConfigStore].
func (c *Config) Get(ctx context.Context, name string, dst any) (bool, error) {
	var raw string
	if err := c.db.QueryRowContext(ctx, queryFetchOption, name).Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("postgres: get option %s: %w", name, err)
	}
	return true, json.Unmarshal([]byte(raw), dst)
}

// Set implements [storage.ConfigStore].
func (c *Config) Set(ctx context.Context, name string, value any, autoload bool) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if _, err := c.db.ExecContext(ctx, queryUpsertOption, name, string(raw), autoload); err != nil {
		return fmt.Errorf("postgres: set option %s: %w", name, err)
	}
	return nil
}

// Delete implements [storage.ConfigStore].
func (c *Config) Delete(ctx context.Context, name string) error {
	if _, err := c.db.ExecContext(ctx, queryDeleteOption, name); err != nil {
		return fmt.Errorf("postgres: delete option %s: %w", name, err)
	}
	return nil
}

var (
	_ storage.KeyValueStore = (*KV)(nil)
	_ storage.ConfigStore   = (*Config)(nil)
)
