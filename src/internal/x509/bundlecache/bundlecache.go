// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package bundlecache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/H0llyW00dzZ/verial-resilience/src/internal/helper/posix"
	"github.com/H0llyW00dzZ/verial-resilience/src/internal/httpclient"
	"github.com/H0llyW00dzZ/verial-resilience/src/internal/metrics"
	"github.com/H0llyW00dzZ/verial-resilience/src/logger"
	"github.com/H0llyW00dzZ/verial-resilience/src/version"
)

const (
	// DefaultTTL is how long a cached bundle stays fresh.
	DefaultTTL = 24 * time.Hour

	// FetchTimeout bounds a remote bundle download.
	FetchTimeout = 15 * time.Second

	fileExt = ".pem"
)

var (
	// ErrUnknownSource is returned when a source is neither a readable file nor an http(s) URL.
	ErrUnknownSource = errors.New("bundlecache: source is neither a readable file nor a URL")

	// ErrFetchFailed is returned when a remote source does not answer 200 with content.
	ErrFetchFailed = errors.New("bundlecache: fetch failed")
)

type memEntry struct {
	data     []byte
	loadedAt time.Time
}

// Cache is a two-tier cache of certificate bundle contents keyed by source.
//
// Lookups try the in-memory tier, then a file under the cache directory
// named after the SHA-256 of the source, then the source itself. Both tiers
// honour the TTL; the disk tier uses the file modification time.
//
// Cache is safe for concurrent use within one process. The directory is
// shared unsynchronized state across processes.
type Cache struct {
	dir     string
	ttl     time.Duration
	http    *httpclient.Config
	log     logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	mu  sync.RWMutex
	mem map[string]memEntry
}

// Option configures a [Cache].
type Option func(*Cache)

// WithTTL sets the freshness window. Non-positive values keep the default.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithHTTPConfig replaces the HTTP configuration used for remote sources.
func WithHTTPConfig(cfg *httpclient.Config) Option {
	return func(c *Cache) { c.http = cfg }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Cache) { c.log = logger.OrNop(l) }
}

// WithMetrics records which tier served each lookup.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Cache) { c.metrics = m }
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New creates the cache directory if needed and returns a cache over it.
func New(dir string, opts ...Option) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("bundlecache: create directory: %w", err)
	}

	httpCfg := httpclient.New(version.Version)
	httpCfg.Timeout = FetchTimeout

	c := &Cache{
		dir:  dir,
		ttl:  DefaultTTL,
		http: httpCfg,
		log:  logger.Nop(),
		now:  time.Now,
		mem:  make(map[string]memEntry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Dir returns the cache directory.
func (c *Cache) Dir() string { return c.dir }

// FileName returns the disk tier file name for a source.
func FileName(sourceRef string) string {
	sum := sha256.Sum256([]byte(sourceRef))
	return hex.EncodeToString(sum[:]) + fileExt
}

func (c *Cache) path(sourceRef string) string {
	return filepath.Join(c.dir, FileName(sourceRef))
}

// Get returns the content of sourceRef, loading it on a miss.
//
// When forceRefresh is set both tiers are bypassed and refilled. Failures are
// logged and returned; callers treat any error as "no bundle available".
func (c *Cache) Get(ctx context.Context, sourceRef string, forceRefresh bool) ([]byte, error) {
	now := c.now()

	if !forceRefresh {
		c.mu.RLock()
		e, ok := c.mem[sourceRef]
		c.mu.RUnlock()
		if ok && now.Sub(e.loadedAt) < c.ttl {
			c.metrics.CertificateLookup("memory")
			return e.data, nil
		}

		if data, ok := c.readDisk(sourceRef, now); ok {
			c.metrics.CertificateLookup("disk")
			c.remember(sourceRef, data, now)
			return data, nil
		}
	}

	data, err := c.load(ctx, sourceRef)
	if err != nil {
		c.metrics.CertificateLookup("error")
		c.log.Warnf("bundlecache: load %s: %v", sourceRef, err)
		return nil, err
	}
	c.metrics.CertificateLookup("load")

	if err := posix.WriteFileAtomic(c.path(sourceRef), data, 0o644); err != nil {
		c.log.Warnf("bundlecache: write disk tier for %s: %v", sourceRef, err)
	}
	c.remember(sourceRef, data, now)
	return data, nil
}

func (c *Cache) remember(sourceRef string, data []byte, at time.Time) {
	c.mu.Lock()
	c.mem[sourceRef] = memEntry{data: data, loadedAt: at}
	c.mu.Unlock()
}

func (c *Cache) readDisk(sourceRef string, now time.Time) ([]byte, bool) {
	p := c.path(sourceRef)
	info, err := os.Stat(p)
	if err != nil || now.Sub(info.ModTime()) >= c.ttl {
		return nil, false
	}
	data, err := os.ReadFile(p)
	if err != nil || len(data) == 0 {
		return nil, false
	}
	return data, true
}

func (c *Cache) load(ctx context.Context, sourceRef string) ([]byte, error) {
	if info, err := os.Stat(sourceRef); err == nil && info.Mode().IsRegular() {
		data, err := os.ReadFile(sourceRef)
		if err != nil {
			return nil, fmt.Errorf("bundlecache: read %s: %w", sourceRef, err)
		}
		return data, nil
	}

	u, err := url.Parse(sourceRef)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return nil, ErrUnknownSource
	}

	ctx, cancel := context.WithTimeout(ctx, FetchTimeout)
	defer cancel()

	resp, err := c.http.Get(ctx, sourceRef)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrFetchFailed, resp.StatusCode)
	}
	if len(resp.Body) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrFetchFailed)
	}
	return resp.Body, nil
}

// Clear invalidates one source in both tiers, or every cached bundle when
// sourceRef is empty.
func (c *Cache) Clear(sourceRef string) error {
	c.mu.Lock()
	if sourceRef == "" {
		c.mem = make(map[string]memEntry)
	} else {
		delete(c.mem, sourceRef)
	}
	c.mu.Unlock()

	if sourceRef != "" {
		if err := os.Remove(c.path(sourceRef)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("bundlecache: remove: %w", err)
		}
		return nil
	}

	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return fmt.Errorf("bundlecache: read directory: %w", err)
	}
	var errs []error
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), fileExt) {
			continue
		}
		if err := os.Remove(filepath.Join(c.dir, e.Name())); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Stats describes the disk tier.
type Stats struct {
	Count     int       `json:"count"`
	TotalSize int64     `json:"total_size"`
	Oldest    time.Time `json:"oldest"`
	Newest    time.Time `json:"newest"`
	Directory string    `json:"directory"`
}

// Stats scans the cache directory. Oldest and Newest are zero when it is empty.
func (c *Cache) Stats() (Stats, error) {
	stats := Stats{Directory: c.dir}

	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return stats, fmt.Errorf("bundlecache: read directory: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), fileExt) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		stats.Count++
		stats.TotalSize += info.Size()
		mod := info.ModTime()
		if stats.Oldest.IsZero() || mod.Before(stats.Oldest) {
			stats.Oldest = mod
		}
		if mod.After(stats.Newest) {
			stats.Newest = mod
		}
	}
	return stats, nil
}

// FormatStats renders s as aligned "key: value" lines.
func FormatStats(s Stats) string {
	stamp := func(t time.Time) string {
		if t.IsZero() {
			return "-"
		}
		return t.UTC().Format(time.RFC3339)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Directory:  %s\n", s.Directory)
	fmt.Fprintf(&b, "Files:      %d\n", s.Count)
	fmt.Fprintf(&b, "Total size: %d bytes\n", s.TotalSize)
	fmt.Fprintf(&b, "Oldest:     %s\n", stamp(s.Oldest))
	fmt.Fprintf(&b, "Newest:     %s\n", stamp(s.Newest))
	return b.String()
}
