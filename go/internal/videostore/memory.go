package videostore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
)

type memoryEntry struct {
	meta Metadata
	blob []byte
}

// MemoryStore keeps videos in process.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry)}
}

func (m *MemoryStore) Put(ctx context.Context, id string, meta Metadata, blob io.Reader) error {
	data, err := io.ReadAll(blob)
	if err != nil {
		return fmt.Errorf("read video %s: %w", id, err)
	}
	meta.ID = id
	meta.Size = int64(len(data))

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[id] = memoryEntry{meta: meta, blob: data}
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, id string) (Metadata, io.ReadCloser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[id]
	if !ok {
		return Metadata{}, nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return e.meta, io.NopCloser(bytes.NewReader(e.blob)), nil
}

func (m *MemoryStore) List(ctx context.Context) ([]Metadata, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Metadata, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e.meta)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
