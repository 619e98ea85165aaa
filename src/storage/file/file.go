// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package file provides a [storage.ConfigStore] persisted as a single JSON or
// YAML document. The format is chosen by file extension.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/H0llyW00dzZ/verial-resilience/src/internal/helper/posix"
	"github.com/H0llyW00dzZ/verial-resilience/src/storage"
)

// ErrUnsupportedFormat is returned for paths that are not .json, .yaml or .yml.
var ErrUnsupportedFormat = errors.New("file: unsupported config file format")

type record struct {
	Autoload bool `json:"autoload" yaml:"autoload"`
	Value    any  `json:"value" yaml:"value"`
}

type document struct {
	Records map[string]record `json:"records" yaml:"records"`
}

// Store keeps every record in memory and rewrites the whole document
// atomically on each mutation.
type Store struct {
	mu   sync.Mutex
	path string
	yaml bool
	doc  document
}

// New opens the document at path, creating an empty store when it does not exist yet.
func New(path string) (*Store, error) {
	s := &Store{path: path, doc: document{Records: make(map[string]record)}}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
	case ".yaml", ".yml":
		s.yaml = true
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return nil, fmt.Errorf("file: read config store: %w", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return s, nil
	}

	if s.yaml {
		err = yaml.Unmarshal(data, &s.doc)
	} else {
		err = json.Unmarshal(data, &s.doc)
	}
	if err != nil {
		return nil, fmt.Errorf("file: parse config store: %w", err)
	}
	if s.doc.Records == nil {
		s.doc.Records = make(map[string]record)
	}
	return s, nil
}

// Path returns the backing file path.
func (s *Store) Path() string { return s.path }

// Get implements [storage.ConfigStore].
func (s *Store) Get(_ context.Context, name string, dst any) (bool, error) {
	s.mu.Lock()
	rec, ok := s.doc.Records[name]
	s.mu.Unlock()

	if !ok {
		return false, nil
	}

	// Round trip through JSON so YAML decoded maps land in tagged structs.
	raw, err := json.Marshal(rec.Value)
	if err != nil {
		return true, err
	}
	return true, json.Unmarshal(raw, dst)
}

// Set implements [storage.ConfigStore].
func (s *Store) Set(_ context.Context, name string, value any, autoload bool) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.doc.Records[name] = record{Autoload: autoload, Value: generic}
	return s.flush()
}

// Delete implements [storage.ConfigStore].
func (s *Store) Delete(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.doc.Records[name]; !ok {
		return nil
	}
	delete(s.doc.Records, name)
	return s.flush()
}

func (s *Store) flush() error {
	var (
		data []byte
		err  error
	)
	if s.yaml {
		data, err = yaml.Marshal(&s.doc)
	} else {
		data, err = json.MarshalIndent(&s.doc, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return fmt.Errorf("file: encode config store: %w", err)
	}
	return posix.WriteFileAtomic(s.path, data, 0o600)
}

var _ storage.ConfigStore = (*Store)(nil)
