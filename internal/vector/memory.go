package vector

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryIndex keeps collections in process memory and searches by brute-force cosine similarity.
// Suitable for tests, offline runs and small deployments.
type MemoryIndex struct {
	mu          sync.RWMutex
	collections map[string]*memCollection
}

type memCollection struct {
	dimensions int
	order      []string
	points     map[string]Point
}

// NewMemoryIndex creates an empty in-memory index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{collections: make(map[string]*memCollection)}
}

// Name returns the transport name.
func (m *MemoryIndex) Name() string { return DriverMemory }

// Exists reports whether the collection exists.
func (m *MemoryIndex) Exists(ctx context.Context, collection string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.collections[collection]
	return ok, nil
}

// Create creates a collection with the given dimension.
func (m *MemoryIndex) Create(ctx context.Context, collection string, dimensions int) error {
	if dimensions <= 0 {
		return fmt.Errorf("dimensions must be positive")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.collections[collection]; ok {
		return ErrCollectionExists
	}
	m.collections[collection] = &memCollection{dimensions: dimensions, points: make(map[string]Point)}
	return nil
}

// Delete drops a collection. Deleting a missing collection is not an error.
func (m *MemoryIndex) Delete(ctx context.Context, collection string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.collections, collection)
	return nil
}

// Upsert inserts points or replaces those with the same ID.
func (m *MemoryIndex) Upsert(ctx context.Context, collection string, points []Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.collections[collection]
	if !ok {
		return ErrCollectionNotFound
	}
	for _, p := range points {
		if len(p.Vector) != c.dimensions {
			return fmt.Errorf("vector dimension mismatch: got %d, expected %d", len(p.Vector), c.dimensions)
		}
	}
	for _, p := range points {
		vec := make([]float32, len(p.Vector))
		copy(vec, p.Vector)
		if _, exists := c.points[p.ID]; !exists {
			c.order = append(c.order, p.ID)
		}
		c.points[p.ID] = Point{ID: p.ID, Vector: vec, Payload: p.Payload}
	}
	return nil
}

// Search returns the top-k points by cosine similarity, best first.
func (m *MemoryIndex) Search(ctx context.Context, collection string, query []float32, k int) ([]Hit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.collections[collection]
	if !ok {
		return nil, ErrCollectionNotFound
	}
	if len(query) != c.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), c.dimensions)
	}
	if k <= 0 || len(c.order) == 0 {
		return nil, nil
	}
	hits := make([]Hit, 0, len(c.order))
	for _, id := range c.order {
		p := c.points[id]
		hits = append(hits, Hit{ID: id, Score: Cosine(query, p.Vector), Payload: p.Payload})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k], nil
}

// Count returns the number of points in the collection.
func (m *MemoryIndex) Count(ctx context.Context, collection string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.collections[collection]
	if !ok {
		return 0, ErrCollectionNotFound
	}
	return len(c.points), nil
}

// Ping always succeeds.
func (m *MemoryIndex) Ping(ctx context.Context) error { return nil }

// Close releases all collections.
func (m *MemoryIndex) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.collections = make(map[string]*memCollection)
	return nil
}
