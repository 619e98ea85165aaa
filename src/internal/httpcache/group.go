// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package httpcache

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUnknownGroup is returned by [ParseGroup] for names outside [Groups].
var ErrUnknownGroup = errors.New("httpcache: unknown cache group")

// Group is a named partition of cache entries that can be invalidated together.
type Group string

const (
	GroupProduct Group = "product"
	GroupOrder   Group = "order"
	GroupConfig  Group = "config"
	GroupGlobal  Group = "global"
)

// Groups lists every cache group in display order.
var Groups = []Group{GroupProduct, GroupOrder, GroupConfig, GroupGlobal}

// ParseGroup converts a group name, case-insensitively.
func ParseGroup(s string) (Group, error) {
	g := Group(strings.ToLower(strings.TrimSpace(s)))
	switch g {
	case GroupProduct, GroupOrder, GroupConfig, GroupGlobal:
		return g, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownGroup, s)
}

// String returns the group name.
func (g Group) String() string { return string(g) }

// Default cache settings.
const (
	DefaultTTL    = time.Hour
	DefaultPrefix = "verial_cache_"
)

// Config is the cache policy.
type Config struct {
	Enabled    bool                    `json:"enabled"`
	DefaultTTL time.Duration           `json:"default_ttl"`
	GroupTTL   map[Group]time.Duration `json:"group_ttl,omitempty"`
	Prefix     string                  `json:"prefix"`
}

// DefaultConfig returns an enabled cache with per-group TTLs tuned for the
// ERP data domains: catalog data changes rarely, orders often.
func DefaultConfig() Config {
	return Config{
		Enabled:    true,
		DefaultTTL: DefaultTTL,
		GroupTTL: map[Group]time.Duration{
			GroupProduct: 4 * time.Hour,
			GroupOrder:   5 * time.Minute,
			GroupConfig:  24 * time.Hour,
			GroupGlobal:  DefaultTTL,
		},
		Prefix: DefaultPrefix,
	}
}

// TTL returns the configured TTL for g, falling back to DefaultTTL and then
// to the package default.
func (c Config) TTL(g Group) time.Duration {
	if ttl, ok := c.GroupTTL[g]; ok && ttl > 0 {
		return ttl
	}
	if c.DefaultTTL > 0 {
		return c.DefaultTTL
	}
	return DefaultTTL
}

func (c Config) prefix() string {
	if c.Prefix == "" {
		return DefaultPrefix
	}
	return c.Prefix
}
