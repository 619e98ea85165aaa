// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package bundlecache caches certificate bundle contents fetched from local
// paths or remote URLs, in memory and on disk.
//
// Remote sources are downloaded over HTTPS with peer verification and a 15
// second timeout. A non-200 answer or transport error is logged and returned
// as an error; nothing is cached for it.
package bundlecache
