// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package httpcache

import (
	"encoding/json"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// RequestIdentity identifies a cacheable request: the endpoint URL and the
// argument set sent with it.
type RequestIdentity struct {
	URL  string
	Args map[string]any
}

// Key derives the request key as url + "_" + hash(canonical JSON of args).
//
// encoding/json writes map keys in sorted order at every nesting level, so two
// argument maps with the same content always produce the same key regardless
// of insertion order.
func Key(url string, args map[string]any) (string, error) {
	if args == nil {
		args = map[string]any{}
	}
	canonical, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("httpcache: canonicalize args: %w", err)
	}
	return url + "_" + hash(canonical), nil
}

// Key returns the request key of the identity.
func (id RequestIdentity) Key() (string, error) {
	return Key(id.URL, id.Args)
}

// StorageKey maps a request key to the key-value store key:
// prefix + group + "_" + hash(requestKey).
func StorageKey(prefix string, group Group, requestKey string) string {
	return prefix + string(group) + "_" + hash([]byte(requestKey))
}

func hash(data []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(data))
}
