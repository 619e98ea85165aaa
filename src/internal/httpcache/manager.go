// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package httpcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/H0llyW00dzZ/verial-resilience/src/internal/metrics"
	"github.com/H0llyW00dzZ/verial-resilience/src/logger"
	"github.com/H0llyW00dzZ/verial-resilience/src/storage"
)

// SettingsRecord is the config record holding the administrative cache settings.
const SettingsRecord = "http_cache_settings"

// ErrDisabled is reported in [Result.Err] when caching is switched off.
var ErrDisabled = errors.New("httpcache: caching disabled")

// entry is the stored form of a cached response.
type entry struct {
	Group     Group     `json:"group"`
	Payload   []byte    `json:"payload"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// settings is the persisted administrative override of [Config].
type settings struct {
	Enabled    bool  `json:"enabled"`
	DefaultTTL int64 `json:"ttl_default"` // seconds
}

// Counters are the per-Manager request statistics.
type Counters struct {
	Hits    uint64 `json:"hit"`
	Misses  uint64 `json:"miss"`
	Expired uint64 `json:"expired"`
	Stored  uint64 `json:"stored"`
}

// Result is the explicit outcome of a cache lookup. Storage failures are
// carried in Err and must be treated as a miss by callers.
type Result struct {
	Payload []byte
	Hit     bool
	Expired bool
	Err     error
}

// Manager orchestrates cached API responses on a [storage.KeyValueStore] with
// group membership tracked in a [GroupIndex].
//
// Caching is best effort: no method returns a storage error to its caller.
// Failures are logged and reported as false, zero or a miss.
//
// Manager is safe for concurrent use by multiple goroutines.
type Manager struct {
	kv      storage.KeyValueStore
	configs storage.ConfigStore
	index   *GroupIndex
	log     logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	mu  sync.RWMutex
	cfg Config

	hits, misses, expired, stored atomic.Uint64
}

// Option configures a [Manager].
type Option func(*Manager)

// WithLogger sets the logger. The default discards output.
func WithLogger(l logger.Logger) Option {
	return func(m *Manager) { m.log = logger.OrNop(l) }
}

// WithMetrics records cache operations in m.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

// WithClock replaces the time source used for entry timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// New creates a manager. Settings persisted by [Manager.SaveSettings] in configs
// override the enabled flag and default TTL of cfg.
func New(ctx context.Context, kv storage.KeyValueStore, configs storage.ConfigStore, cfg Config, opts ...Option) *Manager {
	m := &Manager{
		kv:      kv,
		configs: configs,
		index:   NewGroupIndex(configs, cfg.prefix()),
		log:     logger.Nop(),
		now:     time.Now,
		cfg:     cfg,
	}
	for _, opt := range opts {
		opt(m)
	}

	var s settings
	found, err := configs.Get(ctx, SettingsRecord, &s)
	switch {
	case err != nil:
		m.log.Warnf("httpcache: load settings: %v", err)
	case found:
		m.cfg.Enabled = s.Enabled
		if s.DefaultTTL > 0 {
			m.cfg.DefaultTTL = time.Duration(s.DefaultTTL) * time.Second
		}
	}
	return m
}

// Index returns the group index.
func (m *Manager) Index() *GroupIndex { return m.index }

// Config returns a copy of the current policy.
func (m *Manager) Config() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

// Enabled reports whether caching is on.
func (m *Manager) Enabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg.Enabled
}

// SetEnabled switches caching on or off for this manager.
func (m *Manager) SetEnabled(enabled bool) {
	m.mu.Lock()
	m.cfg.Enabled = enabled
	m.mu.Unlock()
}

// SetDefaultTTL changes the fallback TTL. Non-positive values are ignored.
func (m *Manager) SetDefaultTTL(ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	m.mu.Lock()
	m.cfg.DefaultTTL = ttl
	m.mu.Unlock()
}

// SaveSettings persists the enabled flag and default TTL.
func (m *Manager) SaveSettings(ctx context.Context) error {
	cfg := m.Config()
	return m.configs.Set(ctx, SettingsRecord, settings{
		Enabled:    cfg.Enabled,
		DefaultTTL: int64(cfg.DefaultTTL / time.Second),
	}, true)
}

func (m *Manager) storageKey(id RequestIdentity, g Group) (string, error) {
	requestKey, err := id.Key()
	if err != nil {
		return "", err
	}
	return StorageKey(m.Config().prefix(), g, requestKey), nil
}

// Set stores payload for id under group g. A non-positive ttl resolves to
// the group TTL. It returns false when caching is disabled or the write
// fails; registration in the group index is best effort.
func (m *Manager) Set(ctx context.Context, id RequestIdentity, payload []byte, g Group, ttl time.Duration) bool {
	cfg := m.Config()
	if !cfg.Enabled {
		return false
	}
	if ttl <= 0 {
		ttl = cfg.TTL(g)
	}

	key, err := m.storageKey(id, g)
	if err != nil {
		m.log.Warnf("httpcache: %v", err)
		return false
	}

	now := m.now()
	data, err := json.Marshal(entry{
		Group:     g,
		Payload:   payload,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	})
	if err != nil {
		m.log.Warnf("httpcache: encode entry %s: %v", key, err)
		return false
	}

	if err := m.kv.Set(ctx, key, data, ttl); err != nil {
		m.log.Warnf("httpcache: store %s: %v", key, err)
		m.metrics.CacheOp(g.String(), "error")
		return false
	}

	if err := m.index.Add(ctx, g, key); err != nil {
		m.log.Warnf("httpcache: index %s in group %s: %v", key, g, err)
	}

	m.stored.Add(1)
	m.metrics.CacheOp(g.String(), "stored")
	m.log.Debugf("httpcache: stored %s (group %s, ttl %s)", key, g, ttl)
	return true
}

// Lookup returns the explicit outcome of reading id from group g.
//
// An entry the store reports as expired, or whose recorded deadline has
// passed, counts as both expired and a miss.
func (m *Manager) Lookup(ctx context.Context, id RequestIdentity, g Group) Result {
	if !m.Enabled() {
		return Result{Err: ErrDisabled}
	}

	key, err := m.storageKey(id, g)
	if err != nil {
		return m.miss(g, Result{Err: err})
	}

	data, err := m.kv.Get(ctx, key)
	switch {
	case errors.Is(err, storage.ErrExpired):
		return m.miss(g, Result{Expired: true})
	case errors.Is(err, storage.ErrNotFound):
		return m.miss(g, Result{})
	case err != nil:
		m.log.Warnf("httpcache: read %s: %v", key, err)
		return m.miss(g, Result{Err: err})
	}

	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		m.log.Warnf("httpcache: decode %s: %v", key, err)
		return m.miss(g, Result{Err: fmt.Errorf("httpcache: decode entry: %w", err)})
	}
	if !m.now().Before(e.ExpiresAt) {
		return m.miss(g, Result{Expired: true})
	}

	m.hits.Add(1)
	m.metrics.CacheOp(g.String(), "hit")
	return Result{Payload: e.Payload, Hit: true}
}

func (m *Manager) miss(g Group, r Result) Result {
	m.misses.Add(1)
	result := "miss"
	if r.Expired {
		m.expired.Add(1)
		result = "expired"
	}
	m.metrics.CacheOp(g.String(), result)
	return r
}

// Get returns the cached payload for id in group g. Disabled caching, absent
// or expired entries and storage failures all report a miss.
func (m *Manager) Get(ctx context.Context, id RequestIdentity, g Group) ([]byte, bool) {
	r := m.Lookup(ctx, id, g)
	return r.Payload, r.Hit
}

// Delete removes the entry for id in group g. The key stays in the group
// index until the group is flushed.
func (m *Manager) Delete(ctx context.Context, id RequestIdentity, g Group) bool {
	key, err := m.storageKey(id, g)
	if err != nil {
		m.log.Warnf("httpcache: %v", err)
		return false
	}
	if err := m.kv.Delete(ctx, key); err != nil {
		m.log.Warnf("httpcache: delete %s: %v", key, err)
		return false
	}
	return true
}

// FlushGroup deletes every key listed for g, clears the index and returns
// the number of successful deletions. Listed keys whose entry was already
// deleted or had expired are removed but not counted.
func (m *Manager) FlushGroup(ctx context.Context, g Group) int {
	keys, err := m.index.Keys(ctx, g)
	if err != nil {
		m.log.Warnf("httpcache: load index of %s: %v", g, err)
		return 0
	}

	deleted := 0
	for _, key := range keys {
		live := m.live(ctx, key)
		if err := m.kv.Delete(ctx, key); err != nil {
			m.log.Warnf("httpcache: delete %s: %v", key, err)
			continue
		}
		if live {
			deleted++
		}
	}

	if err := m.index.Clear(ctx, g); err != nil {
		m.log.Warnf("httpcache: clear index of %s: %v", g, err)
	}
	m.log.Infof("httpcache: flushed %d entries from group %s", deleted, g)
	return deleted
}

// live reports whether key still holds an unexpired entry. A backend read
// failure counts as live so the outcome is left to the delete.
func (m *Manager) live(ctx context.Context, key string) bool {
	data, err := m.kv.Get(ctx, key)
	switch {
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, storage.ErrExpired):
		return false
	case err != nil:
		return true
	}
	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		return true
	}
	return m.now().Before(e.ExpiresAt)
}

// FlushAll deletes every key bearing the cache prefix, including entries no
// group index knows about, and clears all group indexes.
func (m *Manager) FlushAll(ctx context.Context) int {
	n, err := m.kv.DeletePrefix(ctx, m.Config().prefix())
	if err != nil {
		m.log.Warnf("httpcache: flush all: %v", err)
	}
	for _, g := range Groups {
		if err := m.index.Clear(ctx, g); err != nil {
			m.log.Warnf("httpcache: clear index of %s: %v", g, err)
		}
	}
	m.log.Infof("httpcache: flushed %d entries", n)
	return n
}

// RequestStats returns a snapshot of the counters of this manager.
func (m *Manager) RequestStats() Counters {
	return Counters{
		Hits:    m.hits.Load(),
		Misses:  m.misses.Load(),
		Expired: m.expired.Load(),
		Stored:  m.stored.Load(),
	}
}

// ResetRequestStats zeroes the counters.
func (m *Manager) ResetRequestStats() {
	m.hits.Store(0)
	m.misses.Store(0)
	m.expired.Store(0)
	m.stored.Store(0)
}

// HitRatio returns hits / (hits + misses), or zero before any lookup.
func (c Counters) HitRatio() float64 {
	total := c.Hits + c.Misses
	if total == 0 {
		return 0
	}
	return float64(c.Hits) / float64(total)
}

// Stats is the aggregate cache report.
type Stats struct {
	Enabled        bool          `json:"enabled"`
	DefaultTTL     int64         `json:"ttl_default"`
	CurrentRequest Counters      `json:"current_request"`
	TotalEntries   int           `json:"total_entries"`
	ByGroup        map[Group]int `json:"by_group"`
	SizeBytes      int64         `json:"size_bytes"`
	SizeFormatted  string        `json:"size_formatted"`
}

// ExtendedStats scans the store for cache keys and aggregates them.
//
// Group counts are approximate: a key is attributed to a group when its name
// contains the group marker, which is not authoritative accounting.
func (m *Manager) ExtendedStats(ctx context.Context) Stats {
	cfg := m.Config()
	stats := Stats{
		Enabled:        cfg.Enabled,
		DefaultTTL:     int64(cfg.DefaultTTL / time.Second),
		CurrentRequest: m.RequestStats(),
		ByGroup:        make(map[Group]int, len(Groups)),
	}
	for _, g := range Groups {
		stats.ByGroup[g] = 0
	}

	keys, err := m.kv.Keys(ctx, cfg.prefix())
	if err != nil {
		m.log.Warnf("httpcache: list keys: %v", err)
	}
	for _, k := range keys {
		stats.TotalEntries++
		stats.SizeBytes += k.Size
		for _, g := range Groups {
			if strings.Contains(k.Key, "_"+string(g)+"_") {
				stats.ByGroup[g]++
				break
			}
		}
	}
	stats.SizeFormatted = FormatSize(stats.SizeBytes)
	return stats
}

// FormatSize renders a byte count with binary units.
func FormatSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	units := []string{"KB", "MB", "GB", "TB"}
	value := float64(n) / unit
	i := 0
	for value >= unit && i < len(units)-1 {
		value /= unit
		i++
	}
	return fmt.Sprintf("%.2f %s", value, units[i])
}
