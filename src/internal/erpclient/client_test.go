// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package erpclient_test

import (
	"context"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/H0llyW00dzZ/verial-resilience/src/internal/erpclient"
	"github.com/H0llyW00dzZ/verial-resilience/src/internal/httpcache"
	"github.com/H0llyW00dzZ/verial-resilience/src/internal/resilience"
	"github.com/H0llyW00dzZ/verial-resilience/src/internal/tlsconfig"
	"github.com/H0llyW00dzZ/verial-resilience/src/storage/memory"
)

type fixture struct {
	srv    *httptest.Server
	bundle string
	hits   atomic.Int32
	codes  chan int
	cache  *httpcache.Manager
}

// newFixture starts a TLS API server. Responses use the status codes queued
// in codes, then 200.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{codes: make(chan int, 16)}
	f.srv = httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.hits.Add(1)
		code := http.StatusOK
		select {
		case code = <-f.codes:
		default:
		}
		w.WriteHeader(code)
		_, _ = w.Write([]byte(r.URL.Path + "?" + r.URL.RawQuery))
	}))
	t.Cleanup(f.srv.Close)

	f.bundle = filepath.Join(t.TempDir(), "ca-bundle.pem")
	require.NoError(t, os.WriteFile(f.bundle, pem.EncodeToMemory(&pem.Block{
		Type:  "CERTIFICATE",
		Bytes: f.srv.Certificate().Raw,
	}), 0o644))

	f.cache = httpcache.New(context.Background(), memory.NewKV(), memory.NewConfig(), httpcache.DefaultConfig())
	return f
}

func (f *fixture) client(t *testing.T, bundle string) *erpclient.Client {
	t.Helper()
	ctx := context.Background()
	ssl := tlsconfig.New(ctx, nil, nil,
		tlsconfig.WithCandidates(nil),
		tlsconfig.WithOverride(func(p *tlsconfig.Policy) { p.CABundlePath = bundle }),
	)
	retry := resilience.New(ctx, nil,
		resilience.WithSleep(func(context.Context, time.Duration) error { return nil }),
	)
	c := erpclient.New(f.srv.URL+"/api/", f.cache, ssl, retry)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestClient_Get(t *testing.T) {
	tests := []struct {
		name     string
		testFunc func(t *testing.T, f *fixture)
	}{
		{
			name: "miss then cached",
			testFunc: func(t *testing.T, f *fixture) {
				c := f.client(t, f.bundle)
				params := map[string]any{"b": 2, "a": "x"}

				res, err := c.Get(context.Background(), "articles", params, httpcache.GroupProduct)
				require.NoError(t, err)
				assert.False(t, res.Cached)
				assert.Equal(t, http.StatusOK, res.StatusCode)
				assert.Equal(t, "/api/articles?a=x&b=2", string(res.Body))

				res, err = c.Get(context.Background(), "articles", map[string]any{"a": "x", "b": 2}, httpcache.GroupProduct)
				require.NoError(t, err)
				assert.True(t, res.Cached)
				assert.Equal(t, "/api/articles?a=x&b=2", string(res.Body))
				assert.Equal(t, int32(1), f.hits.Load())
				assert.Equal(t, uint64(1), f.cache.RequestStats().Hits)
			},
		},
		{
			name: "server error retried",
			testFunc: func(t *testing.T, f *fixture) {
				f.codes <- http.StatusBadGateway
				c := f.client(t, f.bundle)

				res, err := c.Get(context.Background(), "orders", nil, httpcache.GroupOrder)
				require.NoError(t, err)
				assert.Equal(t, http.StatusOK, res.StatusCode)
				assert.Equal(t, int32(2), f.hits.Load())
			},
		},
		{
			name: "client error not cached",
			testFunc: func(t *testing.T, f *fixture) {
				for range 2 {
					f.codes <- http.StatusNotFound
				}
				c := f.client(t, f.bundle)

				res, err := c.Get(context.Background(), "missing", nil, httpcache.GroupGlobal)
				require.ErrorIs(t, err, resilience.ErrUnexpectedStatus)
				require.NotNil(t, res)
				assert.Equal(t, http.StatusNotFound, res.StatusCode)
				assert.Equal(t, int32(2), f.hits.Load())

				res, err = c.Get(context.Background(), "missing", nil, httpcache.GroupGlobal)
				require.NoError(t, err)
				assert.False(t, res.Cached)
				assert.Equal(t, int32(3), f.hits.Load())
			},
		},
		{
			name: "caching disabled",
			testFunc: func(t *testing.T, f *fixture) {
				f.cache.SetEnabled(false)
				c := f.client(t, f.bundle)

				for range 2 {
					res, err := c.Get(context.Background(), "config", nil, httpcache.GroupConfig)
					require.NoError(t, err)
					assert.False(t, res.Cached)
				}
				assert.Equal(t, int32(2), f.hits.Load())
			},
		},
		{
			name: "untrusted server",
			testFunc: func(t *testing.T, f *fixture) {
				c := f.client(t, "")

				res, err := c.Get(context.Background(), "articles", nil, httpcache.GroupProduct)
				require.Error(t, err)
				assert.Nil(t, res)
				assert.Equal(t, resilience.SSLError, resilience.Classify(nil, err))
				assert.Zero(t, f.hits.Load())
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.testFunc(t, newFixture(t))
		})
	}
}

func TestClient_URL(t *testing.T) {
	ctx := context.Background()
	ssl := tlsconfig.New(ctx, nil, nil, tlsconfig.WithCandidates(nil))
	retry := resilience.New(ctx, nil)

	c := erpclient.New("https://erp.example.com/WcfServiceLibraryVerial/", nil, ssl, retry)
	u, err := c.URL("/GetStockArticulosWS", map[string]any{"x": 1, "id_articulo": 0})
	require.NoError(t, err)
	assert.Equal(t, "https://erp.example.com/WcfServiceLibraryVerial/GetStockArticulosWS?id_articulo=0&x=1", u)

	empty := erpclient.New("", nil, ssl, retry)
	_, err = empty.URL("x", nil)
	require.ErrorIs(t, err, erpclient.ErrNoBaseURL)
	_, err = empty.Get(ctx, "x", nil, httpcache.GroupGlobal)
	require.ErrorIs(t, err, erpclient.ErrNoBaseURL)
}

func TestClient_ClientReuse(t *testing.T) {
	f := newFixture(t)
	c := f.client(t, f.bundle)
	ctx := context.Background()

	_, err := c.Get(ctx, "a", nil, httpcache.GroupGlobal)
	require.NoError(t, err)
	_, err = c.Get(ctx, "b", nil, httpcache.GroupGlobal)
	require.NoError(t, err)
	assert.Equal(t, 1, c.CachedClients())

	c.Invalidate()
	assert.Zero(t, c.CachedClients())
}

func TestClient_Watch(t *testing.T) {
	f := newFixture(t)
	c := f.client(t, f.bundle)
	ctx := context.Background()

	require.NoError(t, c.Watch())
	_, err := c.Get(ctx, "a", nil, httpcache.GroupGlobal)
	require.NoError(t, err)
	require.Equal(t, 1, c.CachedClients())

	data, err := os.ReadFile(f.bundle)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(f.bundle, append(data, '\n'), 0o644))

	assert.Eventually(t, func() bool { return c.CachedClients() == 0 }, 5*time.Second, 20*time.Millisecond)

	// Watching again replaces the running watcher.
	require.NoError(t, c.WatchPath(f.bundle))
	require.NoError(t, c.Close())
}

func TestClient_WatchWithoutBundle(t *testing.T) {
	f := newFixture(t)
	c := f.client(t, "")
	require.ErrorIs(t, c.Watch(), erpclient.ErrNoBundle)
}
