// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package memory_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/H0llyW00dzZ/verial-resilience/src/storage"
	"github.com/H0llyW00dzZ/verial-resilience/src/storage/memory"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestKV(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		testFunc func(t *testing.T, kv *memory.KV, clk *clock)
	}{
		{
			name: "Set Get",
			testFunc: func(t *testing.T, kv *memory.KV, _ *clock) {
				require.NoError(t, kv.Set(ctx, "a", []byte("1"), time.Minute))
				got, err := kv.Get(ctx, "a")
				require.NoError(t, err)
				assert.Equal(t, []byte("1"), got)
			},
		},
		{
			name: "Missing",
			testFunc: func(t *testing.T, kv *memory.KV, _ *clock) {
				_, err := kv.Get(ctx, "missing")
				assert.ErrorIs(t, err, storage.ErrNotFound)
			},
		},
		{
			name: "Invalid TTL",
			testFunc: func(t *testing.T, kv *memory.KV, _ *clock) {
				assert.ErrorIs(t, kv.Set(ctx, "a", nil, 0), storage.ErrInvalidTTL)
			},
		},
		{
			name: "Expiry Reported Once",
			testFunc: func(t *testing.T, kv *memory.KV, clk *clock) {
				require.NoError(t, kv.Set(ctx, "a", []byte("1"), time.Minute))

				clk.Advance(59 * time.Second)
				_, err := kv.Get(ctx, "a")
				require.NoError(t, err)

				clk.Advance(time.Second)
				_, err = kv.Get(ctx, "a")
				assert.ErrorIs(t, err, storage.ErrExpired)

				_, err = kv.Get(ctx, "a")
				assert.ErrorIs(t, err, storage.ErrNotFound)
			},
		},
		{
			name: "Returned Value Is A Copy",
			testFunc: func(t *testing.T, kv *memory.KV, _ *clock) {
				value := []byte("abc")
				require.NoError(t, kv.Set(ctx, "a", value, time.Minute))
				value[0] = 'x'

				got, err := kv.Get(ctx, "a")
				require.NoError(t, err)
				got[1] = 'y'

				again, err := kv.Get(ctx, "a")
				require.NoError(t, err)
				assert.Equal(t, "abc", string(again))
			},
		},
		{
			name: "Prefix Operations",
			testFunc: func(t *testing.T, kv *memory.KV, clk *clock) {
				require.NoError(t, kv.Set(ctx, "p_product_1", []byte("12"), time.Minute))
				require.NoError(t, kv.Set(ctx, "p_product_2", []byte("345"), time.Hour))
				require.NoError(t, kv.Set(ctx, "other", []byte("x"), time.Hour))

				clk.Advance(2 * time.Minute)

				keys, err := kv.Keys(ctx, "p_")
				require.NoError(t, err)
				assert.Equal(t, []storage.KeyInfo{{Key: "p_product_2", Size: 3}}, keys)

				n, err := kv.DeletePrefix(ctx, "p_")
				require.NoError(t, err)
				assert.Equal(t, 2, n)

				_, err = kv.Get(ctx, "other")
				assert.NoError(t, err)
			},
		},
		{
			name: "Delete Absent",
			testFunc: func(t *testing.T, kv *memory.KV, _ *clock) {
				assert.NoError(t, kv.Delete(ctx, "nothing"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clk := &clock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
			tt.testFunc(t, memory.NewKV(memory.WithClock(clk.Now)), clk)
		})
	}
}

func TestConfig(t *testing.T) {
	ctx := context.Background()
	cfg := memory.NewConfig()

	type record struct {
		Keys []string `json:"keys"`
	}

	var got record
	found, err := cfg.Get(ctx, "group_keys_product", &got)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, cfg.Set(ctx, "group_keys_product", record{Keys: []string{"a", "b"}}, false))

	found, err = cfg.Get(ctx, "group_keys_product", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []string{"a", "b"}, got.Keys)

	require.NoError(t, cfg.Delete(ctx, "group_keys_product"))
	found, err = cfg.Get(ctx, "group_keys_product", &got)
	require.NoError(t, err)
	assert.False(t, found)
}
