package search

import (
	"context"

	"github.com/devmind-ai/devmind/internal/store"
)

// VectorSearcher adapts a VectorStore for the pipeline. It does not own the
// embedding step; callers pass a pre-computed query vector. Backend failures
// surface as errors so the façade can decide whether to fall back.
type VectorSearcher struct {
	store   store.VectorStore
	weights map[string]float64
}

// NewVectorSearcher creates a searcher over the given store. A nil weights
// map selects the default per-index multipliers.
func NewVectorSearcher(vs store.VectorStore, weights map[string]float64) *VectorSearcher {
	if weights == nil {
		weights = store.DefaultIndexWeights()
	}
	return &VectorSearcher{
		store:   vs,
		weights: weights,
	}
}

// Search queries a single named index.
func (s *VectorSearcher) Search(ctx context.Context, queryVec []float32, indexName string, topK int) ([]*store.VectorResult, error) {
	return s.store.Search(ctx, indexName, queryVec, topK)
}

// SearchMulti queries every known index with per-index weighting and returns
// the merged top k.
func (s *VectorSearcher) SearchMulti(ctx context.Context, queryVec []float32, topK int) ([]*store.VectorResult, error) {
	return s.store.SearchAll(ctx, queryVec, topK, s.weights)
}

// HealthCheck reports whether the underlying store can serve queries.
func (s *VectorSearcher) HealthCheck(ctx context.Context) error {
	return s.store.HealthCheck(ctx)
}
