// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package rotation

import (
	"cmp"
	"slices"
	"time"
)

// Record is the config record holding the rotation [State].
const Record = "cert_rotation_config"

const (
	// DefaultInterval is the maximum age of a bundle.
	DefaultInterval = 30 * 24 * time.Hour

	// DefaultExpirationThreshold is how close to expiry a root may get before
	// the bundle is rotated early.
	DefaultExpirationThreshold = 30 * 24 * time.Hour

	// DefaultRetentionCount is the number of backups kept.
	DefaultRetentionCount = 5

	// MinCertificates is the smallest download accepted as a real bundle.
	MinCertificates = 50

	// FetchTimeout bounds one source download.
	FetchTimeout = 30 * time.Second
)

// Source is one place a CA bundle can be downloaded from.
type Source struct {
	URL      string `json:"url" yaml:"url"`
	Name     string `json:"name" yaml:"name"`
	Priority int    `json:"priority" yaml:"priority"`
}

// DefaultSources returns the built-in download sources keyed by ID.
func DefaultSources() map[string]Source {
	return map[string]Source{
		"curl": {
			URL:      "https://curl.se/ca/cacert.pem",
			Name:     "Mozilla CA bundle (curl.se)",
			Priority: 1,
		},
		"curl_github": {
			URL:      "https://raw.githubusercontent.com/bagder/ca-bundle/master/ca-bundle.crt",
			Name:     "Mozilla CA bundle (GitHub mirror)",
			Priority: 2,
		},
		"mkcert": {
			URL:      "https://mkcert.org/generate/",
			Name:     "mkcert.org",
			Priority: 3,
		},
	}
}

// State is the persisted rotation bookkeeping. A zero LastRotation means the
// bundle was never rotated.
type State struct {
	LastRotation   time.Time         `json:"last_rotation"`
	Sources        map[string]Source `json:"sources"`
	RetentionCount int               `json:"retention_count"`
}

// RankedSource is a [Source] with its ID.
type RankedSource struct {
	ID string `json:"id"`
	Source
}

// ranked returns the sources ordered by ascending priority, then ID.
func (s State) ranked() []RankedSource {
	out := make([]RankedSource, 0, len(s.Sources))
	for id, src := range s.Sources {
		out = append(out, RankedSource{ID: id, Source: src})
	}
	slices.SortFunc(out, func(a, b RankedSource) int {
		if c := cmp.Compare(a.Priority, b.Priority); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

func (s State) clone() State {
	c := s
	c.Sources = make(map[string]Source, len(s.Sources))
	for k, v := range s.Sources {
		c.Sources[k] = v
	}
	return c
}
