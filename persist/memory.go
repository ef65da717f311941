package persist

import (
	"context"
	"sync"
)

// Memory is an in-process [Store].
type Memory struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemory returns an empty [Memory] store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string]string)}
}

// Get returns the value under key; ok is false when absent.
func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok, nil
}

// Set stores value under key.
func (m *Memory) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	m.data[key] = value
	m.mu.Unlock()
	return nil
}

// Remove deletes keys; missing keys are ignored.
func (m *Memory) Remove(_ context.Context, keys ...string) error {
	m.mu.Lock()
	for _, k := range keys {
		delete(m.data, k)
	}
	m.mu.Unlock()
	return nil
}

// Len returns the number of stored keys.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}
