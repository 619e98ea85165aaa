// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package metrics holds the Prometheus instruments shared by the cache,
// retry, latency and rotation components.
//
// Every recording method is safe to call on a nil *Metrics, so components
// accept an optional instance without guarding each call site.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "verial"

// Metrics holds all Prometheus metrics for the resilience subsystem.
type Metrics struct {
	CacheOperations  *prometheus.CounterVec
	Retries          *prometheus.CounterVec
	RequestLatency   *prometheus.HistogramVec
	LatencyAlerts    *prometheus.CounterVec
	Rotations        *prometheus.CounterVec
	CertificateFetch *prometheus.CounterVec
}

// New creates and registers all metrics with the given registry.
func New(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		CacheOperations: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "operations_total",
				Help:      "Cache operations by group and result",
			},
			[]string{"group", "result"}, // result=hit/miss/expired/stored/error
		),
		Retries: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "retries_total",
				Help:      "Request retries by error class",
			},
			[]string{"class"},
		),
		RequestLatency: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Duration of each request attempt in seconds",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15, 30, 60},
			},
			[]string{"host", "method"},
		),
		LatencyAlerts: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "latency_alerts_total",
				Help:      "Latency threshold alerts by level",
			},
			[]string{"level"}, // level=warning/error
		),
		Rotations: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "certificates",
				Name:      "rotations_total",
				Help:      "Certificate bundle rotations by outcome",
			},
			[]string{"outcome"}, // outcome=rotated/skipped/failed
		),
		CertificateFetch: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "certificates",
				Name:      "cache_lookups_total",
				Help:      "Certificate cache lookups by tier",
			},
			[]string{"tier"}, // tier=memory/disk/load/error
		),
	}
}

// CacheOp counts a cache operation.
func (m *Metrics) CacheOp(group, result string) {
	if m == nil {
		return
	}
	m.CacheOperations.WithLabelValues(group, result).Inc()
}

// Retry counts a retry caused by the given error class.
func (m *Metrics) Retry(class string) {
	if m == nil {
		return
	}
	m.Retries.WithLabelValues(class).Inc()
}

// ObserveLatency records the duration of one request attempt.
func (m *Metrics) ObserveLatency(host, method string, seconds float64) {
	if m == nil {
		return
	}
	m.RequestLatency.WithLabelValues(host, method).Observe(seconds)
}

// LatencyAlert counts a latency threshold crossing.
func (m *Metrics) LatencyAlert(level string) {
	if m == nil {
		return
	}
	m.LatencyAlerts.WithLabelValues(level).Inc()
}

// Rotation counts a rotation attempt outcome.
func (m *Metrics) Rotation(outcome string) {
	if m == nil {
		return
	}
	m.Rotations.WithLabelValues(outcome).Inc()
}

// CertificateLookup counts which tier served a certificate cache lookup.
func (m *Metrics) CertificateLookup(tier string) {
	if m == nil {
		return
	}
	m.CertificateFetch.WithLabelValues(tier).Inc()
}
