package settings

import (
	"context"
	"sync"
)

// Memory is a process-local Store. Nothing survives a restart.
type Memory struct {
	mu     sync.RWMutex
	values map[string]string
	status error
	syncs  int
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{values: make(map[string]string)}
}

// NewMemoryFrom seeds a store with values, useful for migration fixtures.
func NewMemoryFrom(values map[string]string) *Memory {
	m := NewMemory()
	for k, v := range values {
		m.values[k] = v
	}
	return m
}

func (m *Memory) Value(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *Memory) SetValue(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *Memory) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

func (m *Memory) Contains(_ context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.values[key]
	return ok, nil
}

func (m *Memory) Sync(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.syncs++
	return m.status
}

func (m *Memory) Status() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// SetStatus makes later Sync and Status calls report err.
func (m *Memory) SetStatus(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = err
}

// Syncs returns how many times Sync was called.
func (m *Memory) Syncs() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.syncs
}

// Snapshot returns a copy of every stored value.
func (m *Memory) Snapshot() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string, len(m.values))
	for k, v := range m.values {
		out[k] = v
	}
	return out
}
