package store

import (
	"context"
	"sort"
	"sync"

	"github.com/askchat/askchat-ai-backend/pkg/utils"
)

// MemoryStore is an in-memory vector store using brute-force cosine distance.
// Suitable for tests and small single-process deployments.
type MemoryStore struct {
	records []Record
	index   map[string]int
	mu      sync.RWMutex
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{index: make(map[string]int)}
}

// Upsert inserts records, overwriting any existing record with the same ID
// in place so insertion order stays stable.
func (m *MemoryStore) Upsert(ctx context.Context, records []Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range records {
		vec := make([]float32, len(rec.Vector))
		copy(vec, rec.Vector)
		rec.Vector = vec
		if i, ok := m.index[rec.ID]; ok {
			m.records[i] = rec
			continue
		}
		m.index[rec.ID] = len(m.records)
		m.records = append(m.records, rec)
	}
	return nil
}

// QuerySimilar returns up to n hits ordered ascending by cosine distance.
// Equal distances keep insertion order.
func (m *MemoryStore) QuerySimilar(ctx context.Context, vector []float32, n int) ([]Hit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if n <= 0 || len(m.records) == 0 {
		return nil, nil
	}
	hits := make([]Hit, len(m.records))
	for i, rec := range m.records {
		hits[i] = Hit{
			ID:       rec.ID,
			Document: rec.Document,
			Meta:     rec.Meta,
			Distance: utils.CosineDistance(vector, rec.Vector),
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	if n > len(hits) {
		n = len(hits)
	}
	return hits[:n], nil
}

// Count returns the number of stored records.
func (m *MemoryStore) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records), nil
}

// Close is a no-op for MemoryStore.
func (m *MemoryStore) Close() error { return nil }
