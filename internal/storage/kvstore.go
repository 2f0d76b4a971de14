// Package storage provides the persistence layer for Growth Brain: a
// file-backed key-value store and the engine state snapshot built on top of it.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

// KeyValueStore is the durable storage abstraction the engine persists through.
// Implementations hold writes in memory until Flush, which overwrites the whole
// backing store. A crash between Put and Flush loses only that delta.
type KeyValueStore interface {
	Get(key string) (string, bool)
	Put(key, value string)
	Delete(key string)
	Keys() []string
	Load() error
	Flush() error
}

// fileKeyValueStore implements KeyValueStore with a single YAML file.
type fileKeyValueStore struct {
	basePath string
	name     string
	mu       sync.Mutex
	data     map[string]string
}

// NewFileKeyValueStore creates a KeyValueStore backed by <basePath>/<name>.yaml.
func NewFileKeyValueStore(basePath, name string) KeyValueStore {
	return &fileKeyValueStore{
		basePath: basePath,
		name:     name,
		data:     make(map[string]string),
	}
}

func (s *fileKeyValueStore) filePath() string {
	return filepath.Join(s.basePath, s.name+".yaml")
}

func (s *fileKeyValueStore) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	return v, ok
}

func (s *fileKeyValueStore) Put(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
}

func (s *fileKeyValueStore) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
}

// Keys returns all keys in sorted order for deterministic iteration.
func (s *fileKeyValueStore) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Load replaces the in-memory map with the file contents. A missing file
// yields an empty store, not an error.
func (s *fileKeyValueStore) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.filePath())
	if err != nil {
		if os.IsNotExist(err) {
			s.data = make(map[string]string)
			return nil
		}
		return fmt.Errorf("loading %s store: %w", s.name, err)
	}

	m := make(map[string]string)
	if err := yaml.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("loading %s store: parsing YAML: %w", s.name, err)
	}
	s.data = m
	return nil
}

// Flush overwrites the backing file with the full in-memory map. Idempotent.
func (s *fileKeyValueStore) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.basePath, 0o750); err != nil {
		return fmt.Errorf("flushing %s store: creating directory: %w", s.name, err)
	}
	data, err := yaml.Marshal(s.data)
	if err != nil {
		return fmt.Errorf("flushing %s store: marshaling YAML: %w", s.name, err)
	}
	if err := os.WriteFile(s.filePath(), data, 0o600); err != nil {
		return fmt.Errorf("flushing %s store: writing file: %w", s.name, err)
	}
	return nil
}
