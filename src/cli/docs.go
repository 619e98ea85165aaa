// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package cli provides the administrative command-line interface of verial-resilience.
// It implements a Cobra-based CLI over the response cache, the certificate cache
// and rotation, the TLS policy and diagnostics, latency history and the ERP API
// client. Every command loads the configuration, wires the application, runs, and
// releases its connections. Output is human readable by default; --json switches
// every command to indented JSON.
package cli
