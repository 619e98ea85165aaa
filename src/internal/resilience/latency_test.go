// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package resilience_test

import (
	"bytes"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/H0llyW00dzZ/verial-resilience/src/internal/metrics"
	"github.com/H0llyW00dzZ/verial-resilience/src/internal/resilience"
	"github.com/H0llyW00dzZ/verial-resilience/src/logger"
	"github.com/H0llyW00dzZ/verial-resilience/src/storage/memory"
)

func TestLatencyTracker(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		testFunc func(t *testing.T)
	}{
		{
			name: "FIFO Capacity",
			testFunc: func(t *testing.T) {
				tr := resilience.NewLatencyTracker(ctx, nil)
				for i := range resilience.MaxSamples + 20 {
					tr.Record(ctx, "erp.example", "GET", time.Duration(i)*time.Millisecond)
				}
				h := tr.History("erp.example")
				require.Len(t, h, resilience.MaxSamples)
				assert.InDelta(t, 0.020, h[0].Latency, 1e-9, "oldest samples evicted first")
				assert.InDelta(t, 0.119, h[len(h)-1].Latency, 1e-9)
			},
		},
		{
			name: "Hosts Are Independent",
			testFunc: func(t *testing.T) {
				tr := resilience.NewLatencyTracker(ctx, nil)
				tr.Record(ctx, "b.example", "GET", time.Second)
				tr.Record(ctx, "a.example", "GET", time.Second)
				tr.Record(ctx, "a.example", "POST", time.Second)
				assert.Equal(t, []string{"a.example", "b.example"}, tr.Hosts())
				assert.Len(t, tr.History("a.example"), 2)
				assert.Empty(t, tr.History("c.example"))
			},
		},
		{
			name: "Threshold Alerts",
			testFunc: func(t *testing.T) {
				var buf bytes.Buffer
				reg := prometheus.NewRegistry()
				mt := metrics.New(reg)
				tr := resilience.NewLatencyTracker(ctx, nil,
					resilience.WithTrackerLogger(logger.NewJSONLogger(&buf, false)),
					resilience.WithTrackerMetrics(mt),
				)

				tr.Record(ctx, "erp.example", "GET", 4*time.Second)
				assert.Empty(t, buf.String())

				tr.Record(ctx, "erp.example", "GET", 5*time.Second)
				assert.Contains(t, buf.String(), `"level":"warning"`)

				buf.Reset()
				tr.Record(ctx, "erp.example", "GET", 15*time.Second)
				assert.Contains(t, buf.String(), `"level":"error"`)

				assert.Equal(t, 1.0, testutil.ToFloat64(mt.LatencyAlerts.WithLabelValues("warning")))
				assert.Equal(t, 1.0, testutil.ToFloat64(mt.LatencyAlerts.WithLabelValues("error")))
			},
		},
		{
			name: "Custom Thresholds",
			testFunc: func(t *testing.T) {
				var buf bytes.Buffer
				tr := resilience.NewLatencyTracker(ctx, nil,
					resilience.WithTrackerLogger(logger.NewJSONLogger(&buf, false)),
					resilience.WithThresholds(time.Second, 2*time.Second),
				)
				tr.Record(ctx, "erp.example", "GET", 2*time.Second)
				assert.Contains(t, buf.String(), `"level":"error"`)
			},
		},
		{
			name: "Probabilistic Persistence",
			testFunc: func(t *testing.T) {
				store := memory.NewConfig()
				draws := []float64{0.5, 0.09, 0.7}
				i := 0
				tr := resilience.NewLatencyTracker(ctx, store, resilience.WithTrackerRand(func() float64 {
					v := draws[i%len(draws)]
					i++
					return v
				}))

				var stored map[string][]resilience.LatencySample
				tr.Record(ctx, "erp.example", "GET", time.Second)
				found, err := store.Get(ctx, resilience.HistoryRecord, &stored)
				require.NoError(t, err)
				assert.False(t, found, "0.5 is above the 10% persist probability")

				tr.Record(ctx, "erp.example", "GET", time.Second)
				found, err = store.Get(ctx, resilience.HistoryRecord, &stored)
				require.NoError(t, err)
				require.True(t, found)
				assert.Len(t, stored["erp.example"], 2)

				tr.Record(ctx, "erp.example", "GET", time.Second)
				require.NoError(t, tr.Flush(ctx))
				reloaded := resilience.NewLatencyTracker(ctx, store)
				assert.Len(t, reloaded.History("erp.example"), 3)
			},
		},
		{
			name: "Loaded History Is Trimmed",
			testFunc: func(t *testing.T) {
				store := memory.NewConfig()
				samples := make([]resilience.LatencySample, resilience.MaxSamples+5)
				for i := range samples {
					samples[i] = resilience.LatencySample{Host: "erp.example", Method: "GET", Latency: float64(i)}
				}
				require.NoError(t, store.Set(ctx, resilience.HistoryRecord, map[string]any{"erp.example": samples}, false))

				h := resilience.NewLatencyTracker(ctx, store).History("erp.example")
				require.Len(t, h, resilience.MaxSamples)
				assert.Equal(t, 5.0, h[0].Latency)
			},
		},
		{
			name: "Summary",
			testFunc: func(t *testing.T) {
				tr := resilience.NewLatencyTracker(ctx, nil)
				assert.Equal(t, resilience.LatencySummary{Host: "erp.example"}, tr.Summary("erp.example"))

				for i := 1; i <= 20; i++ {
					tr.Record(ctx, "erp.example", "GET", time.Duration(i)*100*time.Millisecond)
				}
				s := tr.Summary("erp.example")
				assert.Equal(t, 20, s.Count)
				assert.InDelta(t, 1.05, s.Avg, 1e-9)
				assert.InDelta(t, 2.0, s.Max, 1e-9)
				assert.InDelta(t, 1.9, s.P95, 1e-9, fmt.Sprintf("%+v", s))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, tt.testFunc)
	}
}
