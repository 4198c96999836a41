package barcache

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/newthinker/novaquant/internal/core"
)

// Memory implements Store in process memory
type Memory struct {
	mu      sync.RWMutex
	entries map[string][]core.OHLCV
}

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{entries: make(map[string][]core.OHLCV)}
}

func (m *Memory) Load(ctx context.Context, key string) ([]core.OHLCV, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	bars, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	return append([]core.OHLCV(nil), bars...), true, nil
}

func (m *Memory) Save(ctx context.Context, key string, bars []core.OHLCV) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = append([]core.OHLCV(nil), bars...)
	return nil
}

func (m *Memory) Keys(ctx context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.entries))
	for k := range m.entries {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *Memory) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}
