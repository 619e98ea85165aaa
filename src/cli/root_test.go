// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package cli_test

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/pem"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/H0llyW00dzZ/verial-resilience/src/cli"
	"github.com/H0llyW00dzZ/verial-resilience/src/internal/app"
	"github.com/H0llyW00dzZ/verial-resilience/src/internal/helper/posix"
	"github.com/H0llyW00dzZ/verial-resilience/src/internal/httpcache"
	"github.com/H0llyW00dzZ/verial-resilience/src/internal/httpclient"
	"github.com/H0llyW00dzZ/verial-resilience/src/internal/testutil"
	"github.com/H0llyW00dzZ/verial-resilience/src/internal/x509/rotation"
	"github.com/H0llyW00dzZ/verial-resilience/src/logger"
)

const version = "1.3.3.7-testing"

type env struct {
	dir    string
	config string
	opts   []app.Option
}

// newEnv writes a configuration with a file backed config store, so settings
// persist between invocations, and applies mutate to it.
func newEnv(t *testing.T, mutate func(cfg map[string]any)) *env {
	t.Helper()
	dir := t.TempDir()
	cfg := map[string]any{
		"storage": map[string]any{
			"backend":        "memory",
			"config_backend": "file",
			"config_file":    filepath.Join(dir, "options.json"),
		},
		"certificates": map[string]any{
			"base_dir":    dir,
			"cache_dir":   filepath.Join(dir, "cert-cache"),
			"bundle_path": filepath.Join(dir, "certs", "ca-bundle.pem"),
		},
		"ssl": map[string]any{},
		"log": map[string]any{"format": "json", "level": "error"},
	}
	if mutate != nil {
		mutate(cfg)
	}
	data, err := json.Marshal(cfg)
	require.NoError(t, err)
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return &env{dir: dir, config: path}
}

func (e *env) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := cli.NewRootCommand(version, logger.Nop(), e.opts...)
	cmd.SetArgs(append([]string{"--config", e.config}, args...))
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func (e *env) runJSON(t *testing.T, dst any, args ...string) {
	t.Helper()
	out, err := e.run(t, append([]string{"--json"}, args...)...)
	require.NoError(t, err, out)
	require.NoError(t, json.Unmarshal([]byte(out), dst), out)
}

func writeServerBundle(t *testing.T, dir string, srv *httptest.Server) string {
	t.Helper()
	path := filepath.Join(dir, "server-ca.pem")
	require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(&pem.Block{
		Type:  "CERTIFICATE",
		Bytes: srv.Certificate().Raw,
	}), 0o644))
	return path
}

func TestCache(t *testing.T) {
	tests := []struct {
		name     string
		testFunc func(t *testing.T, e *env)
	}{
		{
			name: "toggle persists",
			testFunc: func(t *testing.T, e *env) {
				out, err := e.run(t, "cache", "toggle", "off")
				require.NoError(t, err)
				assert.Contains(t, out, "Response cache off")

				var stats httpcache.Stats
				e.runJSON(t, &stats, "cache", "stats")
				assert.False(t, stats.Enabled)

				_, err = e.run(t, "cache", "toggle", "maybe")
				require.ErrorIs(t, err, cli.ErrInvalidToggle)
			},
		},
		{
			name: "ttl persists",
			testFunc: func(t *testing.T, e *env) {
				_, err := e.run(t, "cache", "ttl", "0")
				require.ErrorIs(t, err, cli.ErrInvalidTTL)
				_, err = e.run(t, "cache", "ttl", "soon")
				require.ErrorIs(t, err, cli.ErrInvalidTTL)

				out, err := e.run(t, "cache", "ttl", "120")
				require.NoError(t, err)
				assert.Contains(t, out, "2m0s")

				var stats httpcache.Stats
				e.runJSON(t, &stats, "cache", "stats")
				assert.Equal(t, int64(120), stats.DefaultTTL)
				assert.True(t, stats.Enabled)
			},
		},
		{
			name: "stats table",
			testFunc: func(t *testing.T, e *env) {
				out, err := e.run(t, "cache", "stats")
				require.NoError(t, err)
				for _, want := range []string{"enabled", "group product", "group global", "0 B"} {
					assert.Contains(t, out, want)
				}
			},
		},
		{
			name: "flush",
			testFunc: func(t *testing.T, e *env) {
				out, err := e.run(t, "cache", "flush", "--group", "product")
				require.NoError(t, err)
				assert.Contains(t, out, "Flushed 0 cached responses from group product")

				out, err = e.run(t, "cache", "flush")
				require.NoError(t, err)
				assert.Contains(t, out, "Flushed 0 cached responses")

				_, err = e.run(t, "cache", "flush", "--group", "customers")
				require.ErrorIs(t, err, httpcache.ErrUnknownGroup)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.testFunc(t, newEnv(t, nil))
		})
	}
}

func TestSSL(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	t.Cleanup(srv.Close)
	host, port, err := net.SplitHostPort(srv.Listener.Addr().String())
	require.NoError(t, err)

	t.Run("show", func(t *testing.T) {
		e := newEnv(t, nil)
		var policy map[string]any
		e.runJSON(t, &policy, "ssl", "show")
		assert.Equal(t, true, policy["verify_peer"])
		assert.Equal(t, float64(5), policy["verify_depth"])

		out, err := e.run(t, "ssl", "show")
		require.NoError(t, err)
		assert.Contains(t, out, "verify_peer_name")
	})

	t.Run("diagnose fails when verification is off", func(t *testing.T) {
		e := newEnv(t, func(cfg map[string]any) {
			cfg["ssl"] = map[string]any{"verify_peer": false}
		})
		out, err := e.run(t, "ssl", "diagnose")
		require.ErrorIs(t, err, cli.ErrDiagnosticsFailed)
		assert.Contains(t, out, "peer verification is disabled")
		assert.Contains(t, out, "Overall: fail")
	})

	t.Run("test untrusted", func(t *testing.T) {
		e := newEnv(t, nil)
		out, err := e.run(t, "ssl", "test", host, "--port", port, "--chain")
		require.NoError(t, err)
		assert.Contains(t, out, "Verified: no")
		assert.Contains(t, out, "Self-Signed Certificate")
	})

	t.Run("test trusted bundle", func(t *testing.T) {
		e := newEnv(t, nil)
		bundle := writeServerBundle(t, e.dir, srv)
		e = newEnv(t, func(cfg map[string]any) {
			cfg["ssl"] = map[string]any{"ca_bundle_path": bundle}
		})

		var report map[string]any
		e.runJSON(t, &report, "ssl", "test", host, "--port", port)
		assert.Equal(t, true, report["verified"])
		assert.Equal(t, host, report["host"])
	})
}

func TestCert(t *testing.T) {
	t.Run("fetch, stats and clear", func(t *testing.T) {
		e := newEnv(t, nil)
		source := filepath.Join(e.dir, "roots.pem")
		require.NoError(t, os.WriteFile(source, testutil.Bundle(t, 3, time.Now().AddDate(1, 0, 0)), 0o644))
		copyTo := filepath.Join(e.dir, "copy.pem")

		out, err := e.run(t, "cert", "fetch", source, "-o", copyTo)
		require.NoError(t, err)
		assert.Contains(t, out, "Loaded 3 certificates")
		assert.FileExists(t, copyTo)

		var stats map[string]any
		e.runJSON(t, &stats, "cert", "cache-stats")
		assert.Equal(t, float64(1), stats["count"])

		out, err = e.run(t, "cert", "cache-clear")
		require.NoError(t, err)
		assert.Contains(t, out, "Certificate cache cleared")

		out, err = e.run(t, "cert", "cache-stats")
		require.NoError(t, err)
		assert.Contains(t, out, "Files:      0")
	})

	t.Run("rotate and status", func(t *testing.T) {
		bundle := testutil.Bundle(t, 60, time.Now().AddDate(2, 0, 0))
		src := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write(bundle)
		}))
		t.Cleanup(src.Close)

		hc := httpclient.New(version)
		hc.Transport = src.Client().Transport

		e := newEnv(t, nil)
		e.opts = []app.Option{app.WithRotationOptions(
			rotation.WithSources(map[string]rotation.Source{
				"test": {URL: src.URL + "/cacert.pem", Name: "Test Mirror", Priority: 1},
			}),
			rotation.WithHTTPConfig(hc),
			rotation.WithStrategies(posix.DirectChmod{}),
		)}

		out, err := e.run(t, "cert", "status")
		require.NoError(t, err)
		assert.Contains(t, out, "Last rotation:  never")
		assert.Contains(t, out, "Test Mirror")

		out, err = e.run(t, "cert", "rotate")
		require.NoError(t, err)
		assert.Contains(t, out, "Rotated CA bundle from Test Mirror (60 certificates)")
		assert.FileExists(t, filepath.Join(e.dir, "certs", "ca-bundle.pem"))

		var res rotation.Result
		e.runJSON(t, &res, "cert", "rotate")
		assert.False(t, res.Rotated)

		var st rotation.Status
		e.runJSON(t, &st, "cert", "status")
		require.NotNil(t, st.LastRotation)
		assert.False(t, st.NeedsRotation)
	})
}

func TestFetch(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"path":"` + r.URL.Path + `","query":"` + r.URL.RawQuery + `"}`))
	}))
	t.Cleanup(srv.Close)

	e := newEnv(t, nil)
	bundle := writeServerBundle(t, e.dir, srv)
	e = newEnv(t, func(cfg map[string]any) {
		cfg["api"] = map[string]any{"base_url": srv.URL + "/api"}
		cfg["ssl"] = map[string]any{"ca_bundle_path": bundle}
	})

	out, err := e.run(t, "fetch", "articles", "--param", "id=7", "--group", "product")
	require.NoError(t, err)
	assert.Contains(t, out, `{"path":"/api/articles","query":"id=7"}`)

	var view map[string]any
	e.runJSON(t, &view, "fetch", "articles")
	assert.Equal(t, float64(http.StatusOK), view["status_code"])
	assert.Equal(t, false, view["cached"])

	_, err = e.run(t, "fetch", "articles", "--param", "novalue")
	require.ErrorIs(t, err, cli.ErrInvalidParam)

	_, err = e.run(t, "fetch", "articles", "--group", "customers")
	require.ErrorIs(t, err, httpcache.ErrUnknownGroup)
}

func TestLatency(t *testing.T) {
	e := newEnv(t, nil)
	out, err := e.run(t, "latency", "erp.example.com")
	require.NoError(t, err)
	assert.Contains(t, out, "No latency samples recorded for erp.example.com")
}

func TestConfigErrors(t *testing.T) {
	e := &env{config: filepath.Join(t.TempDir(), "absent.yaml")}
	_, err := e.run(t, "cache", "stats")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestVersionFlag(t *testing.T) {
	var out bytes.Buffer
	cmd := cli.NewRootCommand(version, nil)
	cmd.SetArgs([]string{"--version"})
	cmd.SetOut(&out)
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), version)
}

func TestRootCommandName(t *testing.T) {
	orig := os.Args
	t.Cleanup(func() { os.Args = orig })

	os.Args = []string{"/opt/verial/bin/verial-admin"}
	assert.Equal(t, "verial-admin", cli.NewRootCommand(version, nil).Name())

	os.Args = nil
	assert.Equal(t, posix.FallbackExecutableName, cli.NewRootCommand(version, nil).Name())
}
