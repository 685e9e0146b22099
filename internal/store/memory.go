package store

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Memory is an in-process KV used by unit tests and simulation mode.
// It honors the same contract as Redis, including total ordering of
// AtomicIncrement per key. Safe for concurrent use.
type Memory struct {
	mu       sync.Mutex
	values   map[string][]byte
	counters map[string]int64

	// failNext, when set, makes the next operation fail with
	// ErrUnavailable. Tests use it to exercise propagation paths.
	failNext bool
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		values:   make(map[string][]byte),
		counters: make(map[string]int64),
	}
}

// FailNext makes the next store operation return ErrUnavailable.
func (m *Memory) FailNext() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = true
}

// takeFailure consumes a pending injected failure. Caller holds mu.
func (m *Memory) takeFailure() bool {
	if m.failNext {
		m.failNext = false
		return true
	}
	return false
}

// AtomicIncrement implements KV.
func (m *Memory) AtomicIncrement(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.takeFailure() {
		return 0, ErrUnavailable
	}
	m.counters[key]++
	return m.counters[key], nil
}

// Put implements KV.
func (m *Memory) Put(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.takeFailure() {
		return ErrUnavailable
	}
	cp := make([]byte, len(value))
	copy(cp, value)
	m.values[key] = cp
	return nil
}

// Get implements KV.
func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.takeFailure() {
		return nil, ErrUnavailable
	}
	v, ok := m.values[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	cp := make([]byte, len(v))
	copy(cp, v)
	return cp, nil
}

// List implements KV.
func (m *Memory) List(_ context.Context, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.takeFailure() {
		return nil, ErrUnavailable
	}
	var keys []string
	for k := range m.values {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

// Delete implements KV.
func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.takeFailure() {
		return ErrUnavailable
	}
	delete(m.values, key)
	return nil
}

// Len reports the number of stored values. Test helper.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.values)
}
