// Package search implements the query-time retrieval core: weighted
// reranking of vector and keyword candidates, metadata filtering, the
// retrieval pipeline, and a health-aware resilient façade over it.
package search

import (
	"github.com/devmind-ai/devmind/internal/store"
)

// Search modes reported on results.
const (
	ModeHybrid          = "hybrid"
	ModeVector          = "vector"
	ModeKeywordFallback = "keyword_fallback"
)

// Default score weights for combining vector and keyword candidates.
const (
	DefaultVectorWeight  = 0.7
	DefaultKeywordWeight = 0.3
)

// DefaultTopK is the result count when a caller passes topK <= 0.
const DefaultTopK = 10

// Result is a single ranked, cited search result. Score is the weighted
// blend of VectorScore and KeywordScore; it is immutable once the pipeline
// returns it.
type Result struct {
	ChunkID      string            `json:"chunk_id"`
	Content      string            `json:"content"`
	FilePath     string            `json:"file_path"`
	StartLine    int               `json:"start_line"`
	EndLine      int               `json:"end_line"`
	SectionType  store.SectionType `json:"section_type"`
	Language     string            `json:"language"`
	IndexName    string            `json:"index_name,omitempty"`
	Score        float64           `json:"score"`
	VectorScore  float64           `json:"vector_score"`
	KeywordScore float64           `json:"keyword_score"`
	MatchedTerms []string          `json:"matched_terms,omitempty"`
	SearchMode   string            `json:"search_mode"`
	Degraded     bool              `json:"degraded"`
}

// Options controls a single search request.
type Options struct {
	// TopK is the maximum number of results to return.
	TopK int

	// UseKeyword enables the BM25 path alongside vector search. Silently
	// ignored when no keyword index has been built.
	UseKeyword bool

	// IndexName restricts vector search to one named index. Empty means
	// weighted multi-index search.
	IndexName string

	// Criteria filters results after reranking. Nil means no filtering
	// beyond the configured score floor.
	Criteria *Criteria
}

// DefaultOptions returns hybrid search over all indices.
func DefaultOptions() Options {
	return Options{
		TopK:       DefaultTopK,
		UseKeyword: true,
	}
}

// Config holds pipeline-level tuning. Weights are normalized to sum 1 when
// the reranker is constructed.
type Config struct {
	VectorWeight  float64
	KeywordWeight float64
	MinScore      float64
	IndexWeights  map[string]float64
	TypeBoosts    map[store.SectionType]float64
}

// DefaultPipelineConfig returns the standard weighting.
func DefaultPipelineConfig() Config {
	return Config{
		VectorWeight:  DefaultVectorWeight,
		KeywordWeight: DefaultKeywordWeight,
		MinScore:      0.0,
		IndexWeights:  store.DefaultIndexWeights(),
	}
}
