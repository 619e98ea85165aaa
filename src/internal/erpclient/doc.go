// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package erpclient issues cached, retried GET requests against the Verial ERP API.
//
// A request goes through the following steps:
//
//  1. The response cache is consulted with the request URL and parameters.
//  2. On a miss the TLS policy and the resolved timeouts are rendered into
//     request options, and an HTTP client for those options is selected.
//  3. The request runs under the retry manager.
//  4. A 2xx body is stored in the response cache under the requested group.
//
// HTTP clients are kept per rendered option set. [Client.Watch] observes the
// CA bundle file and drops every kept client when the bundle changes, so the
// next request loads the rotated bundle.
//
// # Usage Examples
//
//	c := erpclient.New(baseURL, cache, ssl, retry, erpclient.WithLogger(log))
//	if err := c.Watch(); err != nil {
//		log.Warnf("bundle watcher: %v", err)
//	}
//	defer c.Close()
//
//	res, err := c.Get(ctx, "GetArticulosWS", map[string]any{"fecha": "2026-01-01"}, httpcache.GroupProduct)
package erpclient
