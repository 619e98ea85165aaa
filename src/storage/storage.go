// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package storage

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a key or configuration record does not exist.
	ErrNotFound = errors.New("storage: not found")

	// ErrExpired is returned when an entry is still present in the backend but its
	// TTL has elapsed. Backends that expire entries natively (Redis) never return it.
	ErrExpired = errors.New("storage: entry expired")

	// ErrInvalidTTL is returned by Set when the TTL is not positive.
	ErrInvalidTTL = errors.New("storage: ttl must be positive")
)

// KeyInfo describes a live entry returned by [KeyValueStore.Keys].
type KeyInfo struct {
	Key  string `json:"key"`
	Size int64  `json:"size"`
}

// KeyValueStore is TTL based key-value persistence.
//
// Implementations must be safe for concurrent use by multiple goroutines.
type KeyValueStore interface {
	// Get returns the value stored under key, [ErrNotFound] when absent, or
	// [ErrExpired] when the backend still holds the entry past its deadline.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key for ttl. A non-positive ttl returns [ErrInvalidTTL].
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// DeletePrefix removes every key starting with prefix and returns how many were removed.
	DeletePrefix(ctx context.Context, prefix string) (int, error)

	// Keys lists live entries starting with prefix.
	Keys(ctx context.Context, prefix string) ([]KeyInfo, error)
}

// ConfigStore is named configuration persistence. Values are JSON documents.
//
// Implementations must be safe for concurrent use by multiple goroutines.
type ConfigStore interface {
	// Get decodes the record called name into dst and reports whether it existed.
	Get(ctx context.Context, name string, dst any) (bool, error)

	// Set stores value under name. Autoload marks records that hosts should
	// preload on startup; backends without that notion ignore it.
	Set(ctx context.Context, name string, value any, autoload bool) error

	// Delete removes the record. Deleting an absent record is not an error.
	Delete(ctx context.Context, name string) error
}

// ValidateTTL returns [ErrInvalidTTL] when ttl is not positive.
func ValidateTTL(ttl time.Duration) error {
	if ttl <= 0 {
		return ErrInvalidTTL
	}
	return nil
}
