// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package storage defines the persistence contracts used by the cache and
// resilience components: a TTL key-value store for cached responses and a
// named configuration store for policies, group indexes and rotation state.
//
// Backends live in sub-packages:
//   - memory: in-process maps, used by tests and single-process deployments
//   - file: a single JSON or YAML document on disk (ConfigStore only)
//   - redis: [go-redis] client
//   - postgres: database/sql with the [pq] driver
//   - dynamodb: AWS SDK v2 (KeyValueStore only)
//
// [go-redis]: https://github.com/redis/go-redis
// [pq]: https://github.com/lib/pq
package storage
