// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package httpcache_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/H0llyW00dzZ/verial-resilience/src/internal/httpcache"
	"github.com/H0llyW00dzZ/verial-resilience/src/internal/metrics"
	"github.com/H0llyW00dzZ/verial-resilience/src/storage"
	"github.com/H0llyW00dzZ/verial-resilience/src/storage/memory"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock { return &clock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)} }

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(d time.Duration) {
	c.mu.Lock()
	c.now = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).Add(d)
	c.mu.Unlock()
}

// failingKV wraps a store and fails selected operations.
type failingKV struct {
	storage.KeyValueStore
	failGet, failSet, failDelete bool
}

var errBackend = errors.New("backend unavailable")

func (f *failingKV) Get(ctx context.Context, key string) ([]byte, error) {
	if f.failGet {
		return nil, errBackend
	}
	return f.KeyValueStore.Get(ctx, key)
}

func (f *failingKV) Set(ctx context.Context, key string, v []byte, ttl time.Duration) error {
	if f.failSet {
		return errBackend
	}
	return f.KeyValueStore.Set(ctx, key, v, ttl)
}

func (f *failingKV) Delete(ctx context.Context, key string) error {
	if f.failDelete {
		return errBackend
	}
	return f.KeyValueStore.Delete(ctx, key)
}

type fixture struct {
	clk     *clock
	kv      *memory.KV
	configs *memory.Config
	m       *httpcache.Manager
}

func newFixture(t *testing.T, opts ...httpcache.Option) *fixture {
	t.Helper()
	clk := newClock()
	f := &fixture{
		clk:     clk,
		kv:      memory.NewKV(memory.WithClock(clk.Now)),
		configs: memory.NewConfig(),
	}
	opts = append([]httpcache.Option{httpcache.WithClock(clk.Now)}, opts...)
	f.m = httpcache.New(context.Background(), f.kv, f.configs, httpcache.DefaultConfig(), opts...)
	return f
}

func id(n int) httpcache.RequestIdentity {
	return httpcache.RequestIdentity{
		URL:  "https://erp.example.com/api/GetArticulosWS",
		Args: map[string]any{"id": n, "sesion": 7},
	}
}

func TestManager_ExpiryBoundary(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.True(t, f.m.Set(ctx, id(1), []byte("catalog"), httpcache.GroupProduct, 60*time.Second))

	f.clk.Set(59 * time.Second)
	got, ok := f.m.Get(ctx, id(1), httpcache.GroupProduct)
	require.True(t, ok, "entry must be served before the deadline")
	assert.Equal(t, "catalog", string(got))

	f.clk.Set(61 * time.Second)
	_, ok = f.m.Get(ctx, id(1), httpcache.GroupProduct)
	assert.False(t, ok, "entry must miss after the deadline")

	assert.Equal(t, httpcache.Counters{Hits: 1, Misses: 1, Expired: 1, Stored: 1}, f.m.RequestStats())
}

func TestManager(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		testFunc func(t *testing.T, f *fixture)
	}{
		{
			name: "Group TTL Used When Omitted",
			testFunc: func(t *testing.T, f *fixture) {
				require.True(t, f.m.Set(ctx, id(1), []byte("o"), httpcache.GroupOrder, 0))

				f.clk.Set(5*time.Minute - time.Second)
				_, ok := f.m.Get(ctx, id(1), httpcache.GroupOrder)
				assert.True(t, ok)

				f.clk.Set(5 * time.Minute)
				_, ok = f.m.Get(ctx, id(1), httpcache.GroupOrder)
				assert.False(t, ok)
			},
		},
		{
			name: "Disabled",
			testFunc: func(t *testing.T, f *fixture) {
				f.m.SetEnabled(false)
				assert.False(t, f.m.Set(ctx, id(1), []byte("x"), httpcache.GroupProduct, time.Minute))

				res := f.m.Lookup(ctx, id(1), httpcache.GroupProduct)
				assert.ErrorIs(t, res.Err, httpcache.ErrDisabled)
				assert.Equal(t, httpcache.Counters{}, f.m.RequestStats(), "disabled lookups touch no counters")

				keys, err := f.kv.Keys(ctx, "")
				require.NoError(t, err)
				assert.Empty(t, keys)
			},
		},
		{
			name: "Index Registration Idempotent",
			testFunc: func(t *testing.T, f *fixture) {
				for range 3 {
					require.True(t, f.m.Set(ctx, id(1), []byte("x"), httpcache.GroupProduct, time.Minute))
				}
				keys, err := f.m.Index().Keys(ctx, httpcache.GroupProduct)
				require.NoError(t, err)
				assert.Len(t, keys, 1)
				assert.Equal(t, uint64(3), f.m.RequestStats().Stored)
			},
		},
		{
			name: "FlushGroup Leaves Other Groups",
			testFunc: func(t *testing.T, f *fixture) {
				for i := range 5 {
					require.True(t, f.m.Set(ctx, id(i), []byte("p"), httpcache.GroupProduct, time.Hour))
					require.True(t, f.m.Set(ctx, id(i), []byte("o"), httpcache.GroupOrder, time.Hour))
				}

				assert.Equal(t, 5, f.m.FlushGroup(ctx, httpcache.GroupProduct))

				for i := range 5 {
					_, ok := f.m.Get(ctx, id(i), httpcache.GroupProduct)
					assert.False(t, ok, "product %d must be flushed", i)
					got, ok := f.m.Get(ctx, id(i), httpcache.GroupOrder)
					assert.True(t, ok, "order %d must survive", i)
					assert.Equal(t, "o", string(got))
				}

				keys, err := f.m.Index().Keys(ctx, httpcache.GroupProduct)
				require.NoError(t, err)
				assert.Empty(t, keys)
			},
		},
		{
			name: "Delete Keeps Index Until Flush",
			testFunc: func(t *testing.T, f *fixture) {
				require.True(t, f.m.Set(ctx, id(1), []byte("x"), httpcache.GroupConfig, time.Hour))
				require.True(t, f.m.Delete(ctx, id(1), httpcache.GroupConfig))

				_, ok := f.m.Get(ctx, id(1), httpcache.GroupConfig)
				assert.False(t, ok)

				keys, err := f.m.Index().Keys(ctx, httpcache.GroupConfig)
				require.NoError(t, err)
				assert.Len(t, keys, 1, "stale key stays listed")

				assert.Zero(t, f.m.FlushGroup(ctx, httpcache.GroupConfig), "an already deleted key is not counted")
				keys, err = f.m.Index().Keys(ctx, httpcache.GroupConfig)
				require.NoError(t, err)
				assert.Empty(t, keys)
			},
		},
		{
			name: "FlushGroup Counts Live Entries Only",
			testFunc: func(t *testing.T, f *fixture) {
				require.True(t, f.m.Set(ctx, id(1), []byte("a"), httpcache.GroupProduct, time.Hour))
				require.True(t, f.m.Set(ctx, id(2), []byte("b"), httpcache.GroupProduct, time.Minute))
				require.True(t, f.m.Set(ctx, id(3), []byte("c"), httpcache.GroupProduct, time.Hour))
				require.True(t, f.m.Delete(ctx, id(1), httpcache.GroupProduct))
				f.clk.Set(2 * time.Minute)

				assert.Equal(t, 1, f.m.FlushGroup(ctx, httpcache.GroupProduct))
				for i := 1; i <= 3; i++ {
					_, ok := f.m.Get(ctx, id(i), httpcache.GroupProduct)
					assert.False(t, ok, "product %d must be gone", i)
				}
			},
		},
		{
			name: "FlushAll Catches Orphans",
			testFunc: func(t *testing.T, f *fixture) {
				require.True(t, f.m.Set(ctx, id(1), []byte("x"), httpcache.GroupGlobal, time.Hour))
				require.NoError(t, f.kv.Set(ctx, httpcache.DefaultPrefix+"orphan", []byte("y"), time.Hour))
				require.NoError(t, f.kv.Set(ctx, "unrelated", []byte("z"), time.Hour))

				assert.Equal(t, 2, f.m.FlushAll(ctx))

				_, err := f.kv.Get(ctx, "unrelated")
				assert.NoError(t, err)
				keys, err := f.m.Index().Keys(ctx, httpcache.GroupGlobal)
				require.NoError(t, err)
				assert.Empty(t, keys)
			},
		},
		{
			name: "Extended Stats",
			testFunc: func(t *testing.T, f *fixture) {
				for i := range 3 {
					require.True(t, f.m.Set(ctx, id(i), []byte("p"), httpcache.GroupProduct, time.Hour))
				}
				require.True(t, f.m.Set(ctx, id(0), []byte("o"), httpcache.GroupOrder, time.Hour))
				f.m.Get(ctx, id(0), httpcache.GroupProduct)
				f.m.Get(ctx, id(9), httpcache.GroupProduct)

				stats := f.m.ExtendedStats(ctx)
				assert.True(t, stats.Enabled)
				assert.Equal(t, int64(3600), stats.DefaultTTL)
				assert.Equal(t, 4, stats.TotalEntries)
				assert.Equal(t, 3, stats.ByGroup[httpcache.GroupProduct])
				assert.Equal(t, 1, stats.ByGroup[httpcache.GroupOrder])
				assert.Equal(t, 0, stats.ByGroup[httpcache.GroupConfig])
				assert.Positive(t, stats.SizeBytes)
				assert.Equal(t, httpcache.FormatSize(stats.SizeBytes), stats.SizeFormatted)
				assert.Equal(t, uint64(1), stats.CurrentRequest.Hits)
				assert.Equal(t, uint64(1), stats.CurrentRequest.Misses)
				assert.InDelta(t, 0.5, stats.CurrentRequest.HitRatio(), 0.0001)
			},
		},
		{
			name: "Settings Persist",
			testFunc: func(t *testing.T, f *fixture) {
				f.m.SetEnabled(false)
				f.m.SetDefaultTTL(90 * time.Second)
				f.m.SetDefaultTTL(-1)
				require.NoError(t, f.m.SaveSettings(ctx))

				reloaded := httpcache.New(ctx, f.kv, f.configs, httpcache.DefaultConfig())
				assert.False(t, reloaded.Enabled())
				assert.Equal(t, 90*time.Second, reloaded.Config().DefaultTTL)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.testFunc(t, newFixture(t))
		})
	}
}

func TestManager_StorageFailures(t *testing.T) {
	ctx := context.Background()
	clk := newClock()
	kv := &failingKV{KeyValueStore: memory.NewKV(memory.WithClock(clk.Now))}
	m := httpcache.New(ctx, kv, memory.NewConfig(), httpcache.DefaultConfig(), httpcache.WithClock(clk.Now))

	kv.failSet = true
	assert.False(t, m.Set(ctx, id(1), []byte("x"), httpcache.GroupProduct, time.Minute))

	kv.failSet = false
	require.True(t, m.Set(ctx, id(1), []byte("x"), httpcache.GroupProduct, time.Minute))

	kv.failGet = true
	res := m.Lookup(ctx, id(1), httpcache.GroupProduct)
	assert.False(t, res.Hit)
	assert.ErrorIs(t, res.Err, errBackend)

	kv.failDelete = true
	assert.False(t, m.Delete(ctx, id(1), httpcache.GroupProduct))
	assert.Equal(t, 0, m.FlushGroup(ctx, httpcache.GroupProduct))
}

func TestManager_Metrics(t *testing.T) {
	ctx := context.Background()
	mt := metrics.New(prometheus.NewRegistry())
	f := newFixture(t, httpcache.WithMetrics(mt))

	require.True(t, f.m.Set(ctx, id(1), []byte("x"), httpcache.GroupProduct, time.Minute))
	f.m.Get(ctx, id(1), httpcache.GroupProduct)
	f.clk.Set(2 * time.Minute)
	f.m.Get(ctx, id(1), httpcache.GroupProduct)

	assert.Equal(t, 1.0, testutil.ToFloat64(mt.CacheOperations.WithLabelValues("product", "stored")))
	assert.Equal(t, 1.0, testutil.ToFloat64(mt.CacheOperations.WithLabelValues("product", "hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(mt.CacheOperations.WithLabelValues("product", "expired")))
}

func TestFormatSize(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.00 KB"},
		{1536, "1.50 KB"},
		{5 << 20, "5.00 MB"},
		{3 << 30, "3.00 GB"},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.in), func(t *testing.T) {
			assert.Equal(t, tt.want, httpcache.FormatSize(tt.in))
		})
	}
}
