// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package resilience

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/H0llyW00dzZ/verial-resilience/src/internal/metrics"
	"github.com/H0llyW00dzZ/verial-resilience/src/logger"
	"github.com/H0llyW00dzZ/verial-resilience/src/storage"
)

const (
	// HistoryRecord is the config record holding the latency history.
	HistoryRecord = "ssl_latency_history"

	// MaxSamples is the per-host history capacity.
	MaxSamples = 100

	// DefaultPersistProbability is the chance that a recorded sample flushes the history.
	DefaultPersistProbability = 0.1

	// DefaultWarningThreshold and DefaultCriticalThreshold are the alert levels.
	DefaultWarningThreshold  = 5 * time.Second
	DefaultCriticalThreshold = 15 * time.Second
)

// LatencySample is one completed attempt.
type LatencySample struct {
	Host      string    `json:"host"`
	Method    string    `json:"method"`
	Latency   float64   `json:"latency_seconds"`
	Timestamp time.Time `json:"timestamp"`
}

// LatencySummary aggregates a host's history. Latencies are in seconds.
type LatencySummary struct {
	Host  string  `json:"host"`
	Count int     `json:"count"`
	Avg   float64 `json:"avg"`
	Max   float64 `json:"max"`
	P95   float64 `json:"p95"`
}

// LatencyTracker keeps the most recent [MaxSamples] latencies per host.
//
// The history is flushed to the config store probabilistically on writes,
// and in full by [LatencyTracker.Flush]. The stored record is replaced as a
// whole, so concurrent processes may lose each other's samples.
//
// LatencyTracker is safe for concurrent use by multiple goroutines.
type LatencyTracker struct {
	store    storage.ConfigStore
	log      logger.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
	rand     func() float64
	persistP float64
	warning  time.Duration
	critical time.Duration

	mu      sync.Mutex
	history map[string][]LatencySample
}

// TrackerOption configures a [LatencyTracker].
type TrackerOption func(*LatencyTracker)

// WithThresholds sets the warning and critical alert levels. Non-positive values keep the defaults.
func WithThresholds(warning, critical time.Duration) TrackerOption {
	return func(t *LatencyTracker) {
		if warning > 0 {
			t.warning = warning
		}
		if critical > 0 {
			t.critical = critical
		}
	}
}

// WithPersistProbability sets the flush probability, clamped to [0, 1].
func WithPersistProbability(p float64) TrackerOption {
	return func(t *LatencyTracker) { t.persistP = math.Max(0, math.Min(1, p)) }
}

// WithTrackerRand replaces the random source used for flush decisions.
func WithTrackerRand(fn func() float64) TrackerOption {
	return func(t *LatencyTracker) { t.rand = fn }
}

// WithTrackerClock replaces the sample timestamp source.
func WithTrackerClock(now func() time.Time) TrackerOption {
	return func(t *LatencyTracker) { t.now = now }
}

// WithTrackerLogger sets the alert logger.
func WithTrackerLogger(l logger.Logger) TrackerOption {
	return func(t *LatencyTracker) { t.log = logger.OrNop(l) }
}

// WithTrackerMetrics records latencies and alerts in m.
func WithTrackerMetrics(m *metrics.Metrics) TrackerOption {
	return func(t *LatencyTracker) { t.metrics = m }
}

// NewLatencyTracker loads the persisted history from store, which may be nil.
func NewLatencyTracker(ctx context.Context, store storage.ConfigStore, opts ...TrackerOption) *LatencyTracker {
	t := &LatencyTracker{
		store:    store,
		log:      logger.Nop(),
		now:      time.Now,
		rand:     rand.Float64,
		persistP: DefaultPersistProbability,
		warning:  DefaultWarningThreshold,
		critical: DefaultCriticalThreshold,
		history:  make(map[string][]LatencySample),
	}
	for _, opt := range opts {
		opt(t)
	}

	if store != nil {
		var h map[string][]LatencySample
		found, err := store.Get(ctx, HistoryRecord, &h)
		switch {
		case err != nil:
			t.log.Warnf("resilience: load %s: %v", HistoryRecord, err)
		case found:
			for host, samples := range h {
				if len(samples) > MaxSamples {
					samples = samples[len(samples)-MaxSamples:]
				}
				t.history[host] = samples
			}
		}
	}
	return t
}

// Record appends one sample, raises threshold alerts and, with the
// configured probability, flushes the history.
func (t *LatencyTracker) Record(ctx context.Context, host, method string, d time.Duration) {
	secs := d.Seconds()
	t.metrics.ObserveLatency(host, method, secs)

	switch {
	case d >= t.critical:
		t.log.Errorf("resilience: %s %s took %.2fs (critical threshold %s)", method, host, secs, t.critical)
		t.metrics.LatencyAlert("error")
	case d >= t.warning:
		t.log.Warnf("resilience: %s %s took %.2fs (warning threshold %s)", method, host, secs, t.warning)
		t.metrics.LatencyAlert("warning")
	}

	t.mu.Lock()
	samples := append(t.history[host], LatencySample{
		Host:      host,
		Method:    method,
		Latency:   secs,
		Timestamp: t.now(),
	})
	if len(samples) > MaxSamples {
		samples = slices.Clone(samples[len(samples)-MaxSamples:])
	}
	t.history[host] = samples
	persist := t.store != nil && t.rand() < t.persistP
	t.mu.Unlock()

	if persist {
		if err := t.Flush(ctx); err != nil {
			t.log.Warnf("resilience: %v", err)
		}
	}
}

// Flush writes the whole history to the config store.
func (t *LatencyTracker) Flush(ctx context.Context) error {
	if t.store == nil {
		return nil
	}
	t.mu.Lock()
	snapshot := make(map[string][]LatencySample, len(t.history))
	for host, samples := range t.history {
		snapshot[host] = slices.Clone(samples)
	}
	t.mu.Unlock()

	if err := t.store.Set(ctx, HistoryRecord, snapshot, false); err != nil {
		return fmt.Errorf("resilience: save %s: %w", HistoryRecord, err)
	}
	return nil
}

// History returns a copy of host's samples, oldest first.
func (t *LatencyTracker) History(host string) []LatencySample {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.history[host])
}

// Hosts returns the hosts with recorded samples, sorted.
func (t *LatencyTracker) Hosts() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	hosts := make([]string, 0, len(t.history))
	for h := range t.history {
		hosts = append(hosts, h)
	}
	sort.Strings(hosts)
	return hosts
}

// Summary aggregates host's history. P95 uses the nearest-rank method.
func (t *LatencyTracker) Summary(host string) LatencySummary {
	samples := t.History(host)
	s := LatencySummary{Host: host, Count: len(samples)}
	if len(samples) == 0 {
		return s
	}

	values := make([]float64, len(samples))
	var sum float64
	for i, smp := range samples {
		values[i] = smp.Latency
		sum += smp.Latency
	}
	sort.Float64s(values)

	s.Avg = sum / float64(len(values))
	s.Max = values[len(values)-1]
	rank := int(math.Ceil(0.95*float64(len(values)))) - 1
	s.P95 = values[max(rank, 0)]
	return s
}
