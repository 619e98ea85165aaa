// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package httpcache caches ERP API responses in a TTL key-value store.
//
// Cache keys are derived from the request URL and a hash of its canonical
// JSON arguments, so argument order never changes the key. Entries are
// partitioned into groups (product, order, config, global); a [GroupIndex]
// lists the keys of each group to allow flushing one group without scanning
// the store, while [Manager.FlushAll] scans by prefix and also removes
// entries no index knows about.
//
// Caching is an optimization only. Storage errors are logged and surface as
// misses or false results, never as errors on the data path.
//
// # Usage Examples
//
//	m := httpcache.New(ctx, kv, configs, httpcache.DefaultConfig(), httpcache.WithLogger(log))
//	id := httpcache.RequestIdentity{URL: endpoint, Args: params}
//	if body, ok := m.Get(ctx, id, httpcache.GroupProduct); ok {
//		return body, nil
//	}
//	body, err := fetch(ctx)
//	if err == nil {
//		m.Set(ctx, id, body, httpcache.GroupProduct, 0)
//	}
package httpcache
