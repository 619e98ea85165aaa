// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package httpcache

import (
	"context"
	"slices"
	"sync"

	"github.com/H0llyW00dzZ/verial-resilience/src/storage"
)

// GroupIndex records which storage keys belong to each group so a group can
// be flushed without scanning the whole store.
//
// Keys of entries that expired naturally stay listed until the next flush of
// their group; the flush is the reconciliation point.
//
// Within one process updates are serialized. Across processes the index is
// read-modify-written and the last writer wins.
type GroupIndex struct {
	mu     sync.Mutex
	store  storage.ConfigStore
	prefix string
}

// NewGroupIndex returns an index persisted in store under prefix + "group_keys_" + group.
func NewGroupIndex(store storage.ConfigStore, prefix string) *GroupIndex {
	return &GroupIndex{store: store, prefix: prefix}
}

// RecordName returns the config record name holding the keys of g.
func (x *GroupIndex) RecordName(g Group) string {
	return x.prefix + "group_keys_" + string(g)
}

func (x *GroupIndex) load(ctx context.Context, g Group) ([]string, error) {
	var keys []string
	if _, err := x.store.Get(ctx, x.RecordName(g), &keys); err != nil {
		return nil, err
	}
	return keys, nil
}

// Add appends key to the index of g. Adding a key already present is a no-op.
func (x *GroupIndex) Add(ctx context.Context, g Group, key string) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	keys, err := x.load(ctx, g)
	if err != nil {
		return err
	}
	if slices.Contains(keys, key) {
		return nil
	}
	return x.store.Set(ctx, x.RecordName(g), append(keys, key), false)
}

// Keys returns the keys registered for g in insertion order.
func (x *GroupIndex) Keys(ctx context.Context, g Group) ([]string, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.load(ctx, g)
}

// Clear drops the index of g.
func (x *GroupIndex) Clear(ctx context.Context, g Group) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.store.Delete(ctx, x.RecordName(g))
}
