// Package store defines the durable key-value contract backing player event
// logs, keyed by player id and holding one opaque serialized log per key.
package store

import (
	"context"
	"errors"
	"sort"
	"sync"
)

var (
	// ErrNotFound indicates no record exists for the requested id.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyExists indicates a guarded create collided with an existing record.
	ErrAlreadyExists = errors.New("record already exists")
)

// Store persists opaque event-log blobs keyed by entity id.
type Store interface {
	// Exists reports whether a record is present for the id.
	Exists(ctx context.Context, id string) (bool, error)
	// Create writes a brand-new record, failing with ErrAlreadyExists on collision.
	Create(ctx context.Context, id string, blob []byte) error
	// Save writes the record unconditionally; last writer wins, no partial writes.
	Save(ctx context.Context, id string, blob []byte) error
	// Load returns the stored blob or ErrNotFound.
	Load(ctx context.Context, id string) ([]byte, error)
	// ForEach visits every record in stable id order until fn returns false.
	ForEach(ctx context.Context, fn func(id string, blob []byte) bool) error
}

// Memory is an in-process Store used by tests and single-node deployments
// that do not need durability across restarts.
type Memory struct {
	mu      sync.RWMutex
	records map[string][]byte
}

// NewMemory constructs an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{records: make(map[string][]byte)}
}

// Exists reports whether a record is present for the id.
func (m *Memory) Exists(_ context.Context, id string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.records[id]
	return ok, nil
}

// Create writes a brand-new record, failing with ErrAlreadyExists on collision.
func (m *Memory) Create(_ context.Context, id string, blob []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[id]; ok {
		return ErrAlreadyExists
	}
	m.records[id] = append([]byte(nil), blob...)
	return nil
}

// Save writes the record unconditionally.
func (m *Memory) Save(_ context.Context, id string, blob []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[id] = append([]byte(nil), blob...)
	return nil
}

// Load returns the stored blob or ErrNotFound.
func (m *Memory) Load(_ context.Context, id string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	blob, ok := m.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), blob...), nil
}

// ForEach visits every record in ascending id order until fn returns false.
func (m *Memory) ForEach(_ context.Context, fn func(id string, blob []byte) bool) error {
	m.mu.RLock()
	ids := make([]string, 0, len(m.records))
	for id := range m.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	snapshot := make(map[string][]byte, len(ids))
	for _, id := range ids {
		snapshot[id] = append([]byte(nil), m.records[id]...)
	}
	m.mu.RUnlock()

	for _, id := range ids {
		if !fn(id, snapshot[id]) {
			return nil
		}
	}
	return nil
}
