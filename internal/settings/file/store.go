// Package file provides a YAML file backed settings.Store.
//
// The whole file is a flat map of string keys to string values. It is read
// once on Open; mutations stay in memory until Sync, which rewrites the file
// atomically (temp file, read-back validation, rename).
package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/MrSnakeDoc/lookout/internal/settings"
)

// Store is a settings.Store persisted as YAML on disk.
type Store struct {
	path string

	mu     sync.RWMutex
	values map[string]string
	status error
}

var _ settings.Store = (*Store)(nil)

// Open loads path. A missing file is an empty store. A file that cannot be
// parsed also yields an empty store, with Status reporting settings.ErrFormat
// so the registry falls back instead of overwriting blindly.
func Open(path string) *Store {
	s := &Store{path: path, values: make(map[string]string)}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return s
	case err != nil:
		s.status = fmt.Errorf("%w: read %s: %v", settings.ErrAccess, path, err)
		return s
	}

	if len(data) == 0 {
		return s
	}

	values := make(map[string]string)
	if err := yaml.Unmarshal(data, &values); err != nil {
		s.status = fmt.Errorf("%w: parse %s: %v", settings.ErrFormat, path, err)
		return s
	}
	s.values = values
	return s
}

func (s *Store) Path() string { return s.path }

func (s *Store) Value(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *Store) SetValue(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *Store) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

func (s *Store) Contains(_ context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.values[key]
	return ok, nil
}

// Sync writes the current values to disk and records the outcome in Status.
func (s *Store) Sync(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.flushLocked()
	s.status = err
	return err
}

func (s *Store) Status() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *Store) flushLocked() error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: create settings directory: %v", settings.ErrAccess, err)
	}

	data, err := yaml.Marshal(s.values)
	if err != nil {
		return fmt.Errorf("%w: marshal settings: %v", settings.ErrFormat, err)
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return fmt.Errorf("%w: write temp file: %v", settings.ErrAccess, err)
	}

	// Round-trip validation before replacing the live file.
	check, err := os.ReadFile(tmpPath)
	if err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("%w: read-back temp file: %v", settings.ErrAccess, err)
	}
	verify := make(map[string]string)
	if err := yaml.Unmarshal(check, &verify); err != nil || len(verify) != len(s.values) {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("%w: round-trip validation failed", settings.ErrFormat)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("%w: rename settings file: %v", settings.ErrAccess, err)
	}
	return nil
}
