package store

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/coder/hnsw"
)

// HNSWConfig configures the HNSW-backed vector store.
type HNSWConfig struct {
	// Dimensions is the embedding dimension all indices share.
	Dimensions int

	// M is the HNSW max connections per layer (default: 16).
	M int

	// EfSearch is the HNSW query-time search width (default: 20).
	EfSearch int
}

// DefaultHNSWConfig returns sensible defaults for the given dimension.
func DefaultHNSWConfig(dimensions int) HNSWConfig {
	return HNSWConfig{
		Dimensions: dimensions,
		M:          16,
		EfSearch:   20,
	}
}

// HNSWStore implements VectorStore over coder/hnsw, one graph per named
// index. Pure Go, no CGO.
type HNSWStore struct {
	mu      sync.RWMutex
	config  HNSWConfig
	indices map[string]*hnswIndex
	closed  bool
}

// hnswIndex is one named index: a graph plus the chunk mapping.
type hnswIndex struct {
	graph   *hnsw.Graph[uint64]
	chunks  map[uint64]*Chunk // internal key -> chunk
	idMap   map[string]uint64 // chunk ID -> internal key
	nextKey uint64
}

// NewHNSWStore creates an empty store. Indices are created on first Add.
func NewHNSWStore(cfg HNSWConfig) (*HNSWStore, error) {
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("hnsw store: dimensions must be positive, got %d", cfg.Dimensions)
	}
	if cfg.M == 0 {
		cfg.M = 16
	}
	if cfg.EfSearch == 0 {
		cfg.EfSearch = 20
	}
	return &HNSWStore{
		config:  cfg,
		indices: make(map[string]*hnswIndex),
	}, nil
}

// newIndex builds a fresh graph configured for cosine distance.
func (s *HNSWStore) newIndex() *hnswIndex {
	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = s.config.M
	graph.EfSearch = s.config.EfSearch
	graph.Ml = 0.25

	return &hnswIndex{
		graph:  graph,
		chunks: make(map[uint64]*Chunk),
		idMap:  make(map[string]uint64),
	}
}

// Add inserts vectors with their chunks into the named index.
func (s *HNSWStore) Add(ctx context.Context, indexName string, vectors [][]float32, chunks []*Chunk) error {
	if len(vectors) == 0 {
		return nil
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("vectors and chunks length mismatch: %d vs %d", len(vectors), len(chunks))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	for _, v := range vectors {
		if len(v) != s.config.Dimensions {
			return ErrDimensionMismatch{Expected: s.config.Dimensions, Got: len(v)}
		}
	}

	idx, ok := s.indices[indexName]
	if !ok {
		idx = s.newIndex()
		s.indices[indexName] = idx
	}

	for i, chunk := range chunks {
		// Lazy replacement: orphan the old key instead of deleting from the
		// graph, which coder/hnsw handles badly for the last node.
		if oldKey, exists := idx.idMap[chunk.ID]; exists {
			delete(idx.chunks, oldKey)
			delete(idx.idMap, chunk.ID)
		}

		key := idx.nextKey
		idx.nextKey++

		vec := make([]float32, len(vectors[i]))
		copy(vec, vectors[i])
		normalizeVectorInPlace(vec)

		idx.graph.Add(hnsw.MakeNode(key, vec))
		idx.idMap[chunk.ID] = key
		idx.chunks[key] = chunk
	}

	return nil
}

// Search finds the k nearest neighbors in one named index.
func (s *HNSWStore) Search(ctx context.Context, indexName string, query []float32, k int) ([]*VectorResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	idx, ok := s.indices[indexName]
	if !ok {
		return nil, ErrUnknownIndex{Name: indexName}
	}

	return s.searchIndex(idx, indexName, query, k, 1.0)
}

// SearchAll queries every known index with per-index weights, merges the
// weighted results and returns the top k.
func (s *HNSWStore) SearchAll(ctx context.Context, query []float32, k int, weights map[string]float64) ([]*VectorResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	if weights == nil {
		weights = DefaultIndexWeights()
	}

	var merged []*VectorResult
	for name, idx := range s.indices {
		weight, ok := weights[name]
		if !ok {
			weight = 1.0
		}
		results, err := s.searchIndex(idx, name, query, k, weight)
		if err != nil {
			return nil, fmt.Errorf("search index %q: %w", name, err)
		}
		merged = append(merged, results...)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Score > merged[j].Score
	})
	if len(merged) > k {
		merged = merged[:k]
	}
	return merged, nil
}

// searchIndex runs a weighted search against one index.
// Caller must hold at least a read lock.
func (s *HNSWStore) searchIndex(idx *hnswIndex, indexName string, query []float32, k int, weight float64) ([]*VectorResult, error) {
	if len(query) != s.config.Dimensions {
		return nil, ErrDimensionMismatch{Expected: s.config.Dimensions, Got: len(query)}
	}

	if idx.graph.Len() == 0 {
		return []*VectorResult{}, nil
	}

	normalized := make([]float32, len(query))
	copy(normalized, query)
	normalizeVectorInPlace(normalized)

	nodes := idx.graph.Search(normalized, k)

	results := make([]*VectorResult, 0, len(nodes))
	for _, node := range nodes {
		chunk, exists := idx.chunks[node.Key]
		if !exists {
			// Orphaned by lazy replacement.
			continue
		}

		distance := idx.graph.Distance(normalized, node.Value)
		results = append(results, &VectorResult{
			Chunk:     chunk,
			Score:     float64(distanceToScore(distance)) * weight,
			IndexName: indexName,
		})
	}

	return results, nil
}

// HealthCheck reports whether the store can serve queries.
func (s *HNSWStore) HealthCheck(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}
	return nil
}

// Count returns the number of vectors across all indices.
func (s *HNSWStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0
	}

	total := 0
	for _, idx := range s.indices {
		total += len(idx.idMap)
	}
	return total
}

// IndexNames returns the names of all created indices.
func (s *HNSWStore) IndexNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.indices))
	for name := range s.indices {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close releases resources.
func (s *HNSWStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.indices = nil
	return nil
}

// Verify interface implementation
var _ VectorStore = (*HNSWStore)(nil)

// normalizeVectorInPlace normalizes a vector to unit length in place.
func normalizeVectorInPlace(v []float32) {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return
	}
	invMagnitude := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= invMagnitude
	}
}

// distanceToScore converts a cosine distance (0-2) to a similarity score (0-1).
func distanceToScore(distance float32) float32 {
	return 1.0 - distance/2.0
}
