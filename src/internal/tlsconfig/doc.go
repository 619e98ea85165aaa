// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package tlsconfig holds the TLS policy used for outbound ERP requests and
// renders it into request options, a [crypto/tls.Config] and an
// [net/http.Transport].
//
// A policy is built from defaults, then the persisted "ssl_config" record,
// then caller overrides. When no CA bundle path is configured the manager
// probes a fixed list of application and system locations.
//
// Example usage:
//
//	m := tlsconfig.New(ctx, store, log)
//	opts := m.ApplyToRequestOptions(tlsconfig.RequestOptions{}, isLocal)
//	client, err := tlsconfig.Client(opts)
package tlsconfig
