// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package metrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/H0llyW00dzZ/verial-resilience/src/internal/metrics"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	m.CacheOp("product", "hit")
	m.CacheOp("product", "hit")
	m.Retry("server_error")
	m.ObserveLatency("api.example.com", "GET", 0.3)
	m.LatencyAlert("warning")
	m.Rotation("rotated")
	m.CertificateLookup("disk")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.CacheOperations.WithLabelValues("product", "hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Retries.WithLabelValues("server_error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LatencyAlerts.WithLabelValues("warning")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Rotations.WithLabelValues("rotated")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CertificateFetch.WithLabelValues("disk")))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.Len(t, families, 6)
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *metrics.Metrics
	assert.NotPanics(t, func() {
		m.CacheOp("product", "hit")
		m.Retry("ssl_error")
		m.ObserveLatency("h", "GET", 1)
		m.LatencyAlert("error")
		m.Rotation("failed")
		m.CertificateLookup("memory")
	})
}
