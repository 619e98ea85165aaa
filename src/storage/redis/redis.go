// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package redis implements the storage contracts on top of [go-redis].
// Entry expiry is native, so Get never reports [storage.ErrExpired].
//
// [go-redis]: https://github.com/redis/go-redis
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/H0llyW00dzZ/verial-resilience/src/storage"
)

const (
	// scanCount is the COUNT hint passed to SCAN.
	scanCount = 100

	configPrefix = "config:"
	autoloadSet  = "config:__autoload"
)

// Connect returns a client for a redis:// URL or a bare host:port address.
func Connect(_ context.Context, addr string) (*redis.Client, error) {
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		opt, err := redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("redis: parse url: %w", err)
		}
		return redis.NewClient(opt), nil
	}
	return redis.NewClient(&redis.Options{Addr: addr}), nil
}

// escapeGlob escapes the SCAN MATCH metacharacters in s.
func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// KV is a [storage.KeyValueStore] backed by Redis strings.
type KV struct {
	client redis.UniversalClient
}

// NewKV wraps an existing client.
func NewKV(client redis.UniversalClient) *KV {
	return &KV{client: client}
}

// Get implements [storage.KeyValueStore].
func (k *KV) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := k.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("redis: get %s: %w", key, err)
	}
	return value, nil
}

// Set implements [storage.KeyValueStore].
func (k *KV) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := storage.ValidateTTL(ttl); err != nil {
		return err
	}
	if err := k.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis: set %s: %w", key, err)
	}
	return nil
}

// Delete implements [storage.KeyValueStore].
func (k *KV) Delete(ctx context.Context, key string) error {
	if err := k.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis: delete %s: %w", key, err)
	}
	return nil
}

// scan walks every key matching prefix and hands each SCAN page to fn.
func (k *KV) scan(ctx context.Context, prefix string, fn func(keys []string) error) error {
	pattern := escapeGlob(prefix) + "*"

	var cursor uint64
	for {
		keys, next, err := k.client.Scan(ctx, cursor, pattern, scanCount).Result()
		if err != nil {
			return fmt.Errorf("redis: scan %s: %w", pattern, err)
		}
		if len(keys) > 0 {
			if err := fn(keys); err != nil {
				return err
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

// DeletePrefix implements [storage.KeyValueStore] with SCAN and DEL.
func (k *KV) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	var deleted int64
	err := k.scan(ctx, prefix, func(keys []string) error {
		n, err := k.client.Del(ctx, keys...).Result()
		if err != nil {
			return fmt.Errorf("redis: delete keys: %w", err)
		}
		deleted += n
		return nil
	})
	return int(deleted), err
}

// Keys implements [storage.KeyValueStore] with SCAN and pipelined STRLEN.
func (k *KV) Keys(ctx context.Context, prefix string) ([]storage.KeyInfo, error) {
	var infos []storage.KeyInfo
	err := k.scan(ctx, prefix, func(keys []string) error {
		cmds := make([]*redis.IntCmd, len(keys))
		_, err := k.client.Pipelined(ctx, func(p redis.Pipeliner) error {
			for i, key := range keys {
				cmds[i] = p.StrLen(ctx, key)
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("redis: strlen: %w", err)
		}
		for i, key := range keys {
			infos = append(infos, storage.KeyInfo{Key: key, Size: cmds[i].Val()})
		}
		return nil
	})
	return infos, err
}

// Config is a [storage.ConfigStore] storing each record as a JSON string
// under config:<name>. Autoload names are tracked in a set.
type Config struct {
	client redis.UniversalClient
}

// NewConfig wraps an existing client.
func NewConfig(client redis.UniversalClient) *Config {
	return &Config{client: client}
}

// Get implements [storage.ConfigStore].
func (c *Config) Get(ctx context.Context, name string, dst any) (bool, error) {
	raw, err := c.client.Get(ctx, configPrefix+name).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("redis: get config %s: %w", name, err)
	}
	return true, json.Unmarshal(raw, dst)
}

// Set implements [storage.ConfigStore].
func (c *Config) Set(ctx context.Context, name string, value any, autoload bool) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}

	_, err = c.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, configPrefix+name, raw, 0)
		if autoload {
			p.SAdd(ctx, autoloadSet, name)
		} else {
			p.SRem(ctx, autoloadSet, name)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis: set config %s: %w", name, err)
	}
	return nil
}

// Delete implements [storage.ConfigStore].
func (c *Config) Delete(ctx context.Context, name string) error {
	_, err := c.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, configPrefix+name)
		p.SRem(ctx, autoloadSet, name)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis: delete config %s: %w", name, err)
	}
	return nil
}

// Autoload returns the names of records stored with autoload set.
func (c *Config) Autoload(ctx context.Context) ([]string, error) {
	return c.client.SMembers(ctx, autoloadSet).Result()
}

var (
	_ storage.KeyValueStore = (*KV)(nil)
	_ storage.ConfigStore   = (*Config)(nil)
)
