// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package diagnostics implements the administrative health checks of the
// TLS and caching subsystem and a live TLS connection test.
//
// Every check yields a [Check] with a pass, warning or fail status and, when
// not passing, a remediation hint. [Report] aggregates checks and renders
// them as a table for the command line.
package diagnostics
