// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package resilience resolves per-host and per-method timeouts, classifies
// request failures, and retries requests with exponential backoff and
// jitter. Every attempt's latency is fed to a [LatencyTracker] that keeps a
// bounded per-host history and raises threshold alerts.
//
// The timeout policy is persisted under the "ssl_timeout_config" record and
// the latency history under "ssl_latency_history".
package resilience
