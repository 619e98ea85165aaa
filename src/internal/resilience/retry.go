// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package resilience

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/H0llyW00dzZ/verial-resilience/src/internal/httpclient"
	"github.com/H0llyW00dzZ/verial-resilience/src/internal/metrics"
	"github.com/H0llyW00dzZ/verial-resilience/src/logger"
	"github.com/H0llyW00dzZ/verial-resilience/src/storage"
)

// Record is the config record holding the persisted [Policy].
const Record = "ssl_timeout_config"

var (
	// ErrRequestPanicked wraps a panic raised by a request function.
	ErrRequestPanicked = errors.New("resilience: request function panicked")

	// ErrUnexpectedStatus is returned with the last response when it is not 2xx.
	ErrUnexpectedStatus = errors.New("resilience: unexpected status")

	// ErrNoResponse is returned when a request function yields neither a response nor an error.
	ErrNoResponse = errors.New("resilience: no response")

	// ErrNoStore is returned by Save when the manager was built without a config store.
	ErrNoStore = errors.New("resilience: no config store")
)

// RequestFunc performs one attempt.
type RequestFunc func(ctx context.Context) (*httpclient.Response, error)

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Manager resolves timeout policy and runs requests with retries.
//
// Manager is safe for concurrent use by multiple goroutines.
type Manager struct {
	store   storage.ConfigStore
	log     logger.Logger
	metrics *metrics.Metrics
	latency *LatencyTracker
	sleep   SleepFunc
	rand    func() float64
	now     func() time.Time

	mu     sync.RWMutex
	policy Policy
}

// Option configures a [Manager].
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(m *Manager) { m.log = logger.OrNop(l) }
}

// WithMetrics records retries in mt.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

// WithLatencyTracker replaces the tracker fed by [Manager.Execute].
func WithLatencyTracker(t *LatencyTracker) Option {
	return func(m *Manager) { m.latency = t }
}

// WithSleep replaces the backoff wait.
func WithSleep(fn SleepFunc) Option {
	return func(m *Manager) { m.sleep = fn }
}

// WithRand replaces the jitter source. fn must return values in [0, 1).
func WithRand(fn func() float64) Option {
	return func(m *Manager) { m.rand = fn }
}

// WithClock replaces the clock used to measure attempts.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithPolicy replaces the defaults before the persisted record is applied.
func WithPolicy(p Policy) Option {
	return func(m *Manager) { m.policy = p.clone() }
}

// New builds a manager from defaults overlaid with the persisted [Record].
// When no tracker is supplied one is created over the same store.
func New(ctx context.Context, store storage.ConfigStore, opts ...Option) *Manager {
	m := &Manager{
		store:  store,
		log:    logger.Nop(),
		sleep:  sleepContext,
		rand:   rand.Float64,
		now:    time.Now,
		policy: DefaultPolicy(),
	}
	for _, opt := range opts {
		opt(m)
	}

	if store != nil {
		p := m.policy.clone()
		found, err := store.Get(ctx, Record, &p)
		switch {
		case err != nil:
			m.log.Warnf("resilience: load %s: %v", Record, err)
		case found:
			m.policy = p
		}
	}

	if m.latency == nil {
		m.latency = NewLatencyTracker(ctx, store, WithTrackerLogger(m.log), WithTrackerMetrics(m.metrics))
	}
	return m
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Latency returns the tracker fed by [Manager.Execute].
func (m *Manager) Latency() *LatencyTracker { return m.latency }

// Policy returns a copy of the active policy.
func (m *Manager) Policy() Policy {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.policy.clone()
}

// Update mutates the active policy. Call [Manager.Save] to persist it.
func (m *Manager) Update(fn func(*Policy)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(&m.policy)
}

// Save persists the active policy under [Record].
func (m *Manager) Save(ctx context.Context) error {
	if m.store == nil {
		return ErrNoStore
	}
	if err := m.store.Set(ctx, Record, m.Policy(), true); err != nil {
		return fmt.Errorf("resilience: save %s: %w", Record, err)
	}
	return nil
}

// GetTimeoutConfig resolves the timeouts and retry budget for a request.
//
// Resolution starts from the global defaults, overlays the method timeout
// when method is known, then overlays the host override for the URL's
// hostname. The host timeout wins over the method timeout.
func (m *Manager) GetTimeoutConfig(rawURL, method string) TimeoutConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.policy.resolve(rawURL, method)
}

// GetErrorPolicy returns the retry budget for class, or the global
// max_retries and backoff_factor when the class has no entry.
func (m *Manager) GetErrorPolicy(class ErrorClass) ErrorPolicy {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.policy.errorPolicy(class)
}

// CalculateBackoff returns the wait in seconds before retry n:
// factor^n + jitter*factor^n*r with r drawn from [0, 1). Retry 0 waits 0.
// The factor is the class's backoff_factor; ClassNone uses the global one.
func (m *Manager) CalculateBackoff(n int, class ErrorClass) float64 {
	if n <= 0 {
		return 0
	}
	m.mu.RLock()
	factor := m.policy.errorPolicy(class).BackoffFactor
	jitter := m.policy.Jitter
	m.mu.RUnlock()

	base := math.Pow(factor, float64(n))
	return base + jitter*base*m.rand()
}

// Execute runs fn until it yields a valid result or the retry budget is spent.
//
// The budget starts at the resolved max_retries for rawURL and method and is
// re-resolved after every failed attempt from the error class just observed,
// so it can grow or shrink mid-loop when classes change between attempts.
// Before each retry Execute sleeps ceil(CalculateBackoff(attempt, class))
// whole seconds. Every attempt's latency is recorded. A panic in fn is
// recovered and classified as [Exception].
//
// Parameters:
//   - ctx: Context passed to fn and honoured by the backoff wait
//   - fn: One request attempt
//   - rawURL: Request URL, used for policy and latency host
//   - method: HTTP method
//
// Returns:
//   - *httpclient.Response: The valid response, or the last failed one
//   - error: nil on success, otherwise the last failure; a non-2xx last
//     response yields [ErrUnexpectedStatus]
func (m *Manager) Execute(ctx context.Context, fn RequestFunc, rawURL, method string) (*httpclient.Response, error) {
	host := HostOf(rawURL)
	budget := m.GetTimeoutConfig(rawURL, method).MaxRetries

	var (
		lastResp *httpclient.Response
		lastErr  error
		class    ErrorClass
	)

	for attempt := 0; attempt <= budget; attempt++ {
		if attempt > 0 {
			wait := time.Duration(math.Ceil(m.CalculateBackoff(attempt, class))) * time.Second
			m.metrics.Retry(string(class))
			m.log.Debugf("resilience: retry %d/%d for %s %s after %s (%s)", attempt, budget, method, rawURL, wait, class)
			if err := m.sleep(ctx, wait); err != nil {
				return lastResp, errors.Join(lastErr, err)
			}
		}

		start := m.now()
		resp, err := m.attempt(ctx, fn)
		m.latency.Record(ctx, host, method, m.now().Sub(start))

		class = Classify(resp, err)
		if class == ClassNone {
			return resp, nil
		}

		lastResp, lastErr = resp, failure(resp, err)
		budget = m.GetErrorPolicy(class).MaxRetries
		m.log.Warnf("resilience: attempt %d for %s %s failed (%s): %v", attempt+1, method, rawURL, class, lastErr)
	}

	return lastResp, lastErr
}

func (m *Manager) attempt(ctx context.Context, fn RequestFunc) (resp *httpclient.Response, err error) {
	defer func() {
		if r := recover(); r != nil {
			resp, err = nil, fmt.Errorf("%w: %v", ErrRequestPanicked, r)
		}
	}()
	return fn(ctx)
}

func failure(resp *httpclient.Response, err error) error {
	switch {
	case err != nil:
		return err
	case resp == nil:
		return ErrNoResponse
	default:
		return fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}
}
