// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package httpcache_test

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/H0llyW00dzZ/verial-resilience/src/internal/httpcache"
)

func TestKey_OrderIndependent(t *testing.T) {
	const url = "https://erp.example.com/WcfServiceLibraryVerial/GetArticulosWS"

	rng := rand.New(rand.NewPCG(1, 2))
	for trial := range 50 {
		names := make([]string, 8)
		for i := range names {
			names[i] = fmt.Sprintf("p%d_%d", trial, i)
		}

		forward := make(map[string]any)
		for i, n := range names {
			forward[n] = i
		}

		shuffled := append([]string(nil), names...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		permuted := make(map[string]any)
		for _, n := range shuffled {
			permuted[n] = forward[n]
		}

		k1, err := httpcache.Key(url, forward)
		require.NoError(t, err)
		k2, err := httpcache.Key(url, permuted)
		require.NoError(t, err)
		assert.Equal(t, k1, k2, "trial %d", trial)
	}
}

func TestKey(t *testing.T) {
	tests := []struct {
		name     string
		testFunc func(t *testing.T)
	}{
		{
			name: "Nested Maps Canonicalized",
			testFunc: func(t *testing.T) {
				a := map[string]any{"filter": map[string]any{"b": 1, "a": 2}, "page": 1}
				b := map[string]any{"page": 1, "filter": map[string]any{"a": 2, "b": 1}}

				ka, err := httpcache.Key("u", a)
				require.NoError(t, err)
				kb, err := httpcache.Key("u", b)
				require.NoError(t, err)
				assert.Equal(t, ka, kb)
			},
		},
		{
			name: "Different Args Differ",
			testFunc: func(t *testing.T) {
				ka, _ := httpcache.Key("u", map[string]any{"page": 1})
				kb, _ := httpcache.Key("u", map[string]any{"page": 2})
				assert.NotEqual(t, ka, kb)
			},
		},
		{
			name: "Shape",
			testFunc: func(t *testing.T) {
				k, err := httpcache.Key("https://erp/x", nil)
				require.NoError(t, err)
				assert.True(t, strings.HasPrefix(k, "https://erp/x_"))
				assert.Len(t, strings.TrimPrefix(k, "https://erp/x_"), 16)

				empty, _ := httpcache.Key("https://erp/x", map[string]any{})
				assert.Equal(t, k, empty, "nil and empty args are the same request")
			},
		},
		{
			name: "Unencodable Args",
			testFunc: func(t *testing.T) {
				_, err := httpcache.Key("u", map[string]any{"f": func() {}})
				assert.Error(t, err)
			},
		},
		{
			name: "Storage Key",
			testFunc: func(t *testing.T) {
				k := httpcache.StorageKey("verial_cache_", httpcache.GroupOrder, "https://erp/x_0123")
				assert.True(t, strings.HasPrefix(k, "verial_cache_order_"))
				assert.Equal(t, k, httpcache.StorageKey("verial_cache_", httpcache.GroupOrder, "https://erp/x_0123"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.testFunc(t)
		})
	}
}

func TestParseGroup(t *testing.T) {
	for _, g := range httpcache.Groups {
		got, err := httpcache.ParseGroup(strings.ToUpper(g.String()))
		require.NoError(t, err)
		assert.Equal(t, g, got)
	}

	_, err := httpcache.ParseGroup("customers")
	assert.ErrorIs(t, err, httpcache.ErrUnknownGroup)
}

func TestConfig_TTL(t *testing.T) {
	cfg := httpcache.DefaultConfig()
	assert.Equal(t, cfg.GroupTTL[httpcache.GroupOrder], cfg.TTL(httpcache.GroupOrder))

	cfg.GroupTTL = nil
	assert.Equal(t, cfg.DefaultTTL, cfg.TTL(httpcache.GroupOrder))

	cfg.DefaultTTL = 0
	assert.Equal(t, httpcache.DefaultTTL, cfg.TTL(httpcache.GroupOrder))
}
