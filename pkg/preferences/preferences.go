// Package preferences persists small integer settings such as the last
// selected currencies.
package preferences

import (
	"context"
	"errors"
	"sync"
)

const (
	// BaseIndexKey stores the selected base currency index.
	BaseIndexKey = "currency.base_index"
	// TargetIndexKey stores the selected target currency index.
	TargetIndexKey = "currency.target_index"

	// DefaultBaseIndex selects CAD.
	DefaultBaseIndex = 1
	// DefaultTargetIndex selects GBP.
	DefaultTargetIndex = 2
)

// ErrEmptyKey is returned for blank keys.
var ErrEmptyKey = errors.New("preference key is empty")

// Store reads and writes integer preferences. GetInt returns def when the
// key has never been written.
type Store interface {
	GetInt(ctx context.Context, key string, def int) (int, error)
	SetInt(ctx context.Context, key string, value int) error
}

// Memory is a process-local Store.
type Memory struct {
	mu     sync.RWMutex
	values map[string]int
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{values: make(map[string]int)}
}

func (m *Memory) GetInt(_ context.Context, key string, def int) (int, error) {
	if key == "" {
		return 0, ErrEmptyKey
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if v, ok := m.values[key]; ok {
		return v, nil
	}
	return def, nil
}

func (m *Memory) SetInt(_ context.Context, key string, value int) error {
	if key == "" {
		return ErrEmptyKey
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

var _ Store = (*Memory)(nil)
