// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package memory provides in-process implementations of the storage contracts.
package memory

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/H0llyW00dzZ/verial-resilience/src/storage"
)

type entry struct {
	value     []byte
	expiresAt time.Time
}

// KV is a map backed [storage.KeyValueStore].
//
// An expired entry is reported once as [storage.ErrExpired] and then removed,
// so a following Get returns [storage.ErrNotFound].
type KV struct {
	mu      sync.RWMutex
	entries map[string]entry
	now     func() time.Time
}

// Option configures a [KV].
type Option func(*KV)

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(k *KV) { k.now = now }
}

// NewKV returns an empty store.
func NewKV(opts ...Option) *KV {
	k := &KV{entries: make(map[string]entry), now: time.Now}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// Get implements [storage.KeyValueStore].
func (k *KV) Get(_ context.Context, key string) ([]byte, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	e, ok := k.entries[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	if !k.now().Before(e.expiresAt) {
		delete(k.entries, key)
		return nil, storage.ErrExpired
	}
	return append([]byte(nil), e.value...), nil
}

// Set implements [storage.KeyValueStore].
func (k *KV) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if err := storage.ValidateTTL(ttl); err != nil {
		return err
	}

	k.mu.Lock()
	k.entries[key] = entry{
		value:     append([]byte(nil), value...),
		expiresAt: k.now().Add(ttl),
	}
	k.mu.Unlock()
	return nil
}

// Delete implements [storage.KeyValueStore].
func (k *KV) Delete(_ context.Context, key string) error {
	k.mu.Lock()
	delete(k.entries, key)
	k.mu.Unlock()
	return nil
}

// DeletePrefix implements [storage.KeyValueStore].
func (k *KV) DeletePrefix(_ context.Context, prefix string) (int, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	n := 0
	for key := range k.entries {
		if strings.HasPrefix(key, prefix) {
			delete(k.entries, key)
			n++
		}
	}
	return n, nil
}

// Keys implements [storage.KeyValueStore]. Results are sorted by key.
func (k *KV) Keys(_ context.Context, prefix string) ([]storage.KeyInfo, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	now := k.now()
	var keys []storage.KeyInfo
	for key, e := range k.entries {
		if strings.HasPrefix(key, prefix) && now.Before(e.expiresAt) {
			keys = append(keys, storage.KeyInfo{Key: key, Size: int64(len(e.value))})
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Key < keys[j].Key })
	return keys, nil
}

// Config is a map backed [storage.ConfigStore].
type Config struct {
	mu      sync.RWMutex
	records map[string]json.RawMessage
}

// NewConfig returns an empty store.
func NewConfig() *Config {
	return &Config{records: make(map[string]json.RawMessage)}
}

// Get implements [storage.ConfigStore].
func (c *Config) Get(_ context.Context, name string, dst any) (bool, error) {
	c.mu.RLock()
	raw, ok := c.records[name]
	c.mu.RUnlock()

	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dst)
}

// Set implements [storage.ConfigStore].
func (c *Config) Set(_ context.Context, name string, value any, _ bool) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.records[name] = raw
	c.mu.Unlock()
	return nil
}

// Delete implements [storage.ConfigStore].
func (c *Config) Delete(_ context.Context, name string) error {
	c.mu.Lock()
	delete(c.records, name)
	c.mu.Unlock()
	return nil
}

var (
	_ storage.KeyValueStore = (*KV)(nil)
	_ storage.ConfigStore   = (*Config)(nil)
)
