// Package store provides the indexed data model (chunks, search candidates)
// and the vector storage capability consumed by the retrieval pipeline.
package store

import (
	"context"
	"fmt"
)

// SectionType classifies the structural kind of a chunk.
type SectionType string

const (
	SectionTypeFunction  SectionType = "function"
	SectionTypeMethod    SectionType = "method"
	SectionTypeClass     SectionType = "class"
	SectionTypeInterface SectionType = "interface"
	SectionTypeParagraph SectionType = "paragraph"
	SectionTypeHeading   SectionType = "heading"
	SectionTypeOther     SectionType = "other"
)

// Well-known index names. Indices are free-form; these are the defaults the
// multi-index weighting applies to.
const (
	IndexCode  = "code"
	IndexDocs  = "docs"
	IndexNotes = "notes"
)

// DefaultIndexWeights are the multipliers applied per index during
// multi-index vector search.
func DefaultIndexWeights() map[string]float64 {
	return map[string]float64{
		IndexCode:  1.0,
		IndexDocs:  0.8,
		IndexNotes: 0.5,
	}
}

// Chunk is a single indexed unit of text with metadata.
// Chunks are immutable once indexed; search results reference them, never
// copy them.
type Chunk struct {
	ID          string            `json:"id"`
	Content     string            `json:"content"`
	FilePath    string            `json:"file_path"`
	Language    string            `json:"language"`
	StartLine   int               `json:"start_line"` // 1-indexed
	EndLine     int               `json:"end_line"`   // inclusive
	SectionType SectionType       `json:"section_type"`
	IndexName   string            `json:"index_name"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// KeywordResult is a single candidate from the keyword (BM25) path.
// Scores are normalized so the top result for a query is 1.0; they are not
// comparable to vector scores until reranked.
type KeywordResult struct {
	Chunk        *Chunk
	Score        float64
	MatchedTerms []string
}

// VectorResult is a single candidate from the vector path.
type VectorResult struct {
	Chunk     *Chunk
	Score     float64 // cosine similarity mapped to [0,1], index-weighted in multi search
	IndexName string
}

// IndexStats describes a keyword index generation.
type IndexStats struct {
	DocumentCount int
	TermCount     int
	AvgDocLength  float64
}

// VectorStore provides semantic nearest-neighbor search over named indices.
// Implementations own the chunks they store; failures surface as errors and
// the caller decides whether to fall back.
type VectorStore interface {
	// Add inserts vectors with their chunks into the named index, creating
	// the index if needed. An existing chunk ID is replaced.
	Add(ctx context.Context, indexName string, vectors [][]float32, chunks []*Chunk) error

	// Search finds the k nearest neighbors in one named index.
	Search(ctx context.Context, indexName string, query []float32, k int) ([]*VectorResult, error)

	// SearchAll queries every known index, multiplies each similarity by the
	// index weight, merges and returns the top k.
	SearchAll(ctx context.Context, query []float32, k int, weights map[string]float64) ([]*VectorResult, error)

	// HealthCheck reports whether the store can serve queries.
	HealthCheck(ctx context.Context) error

	// Count returns the number of vectors across all indices.
	Count() int

	// Close releases resources.
	Close() error
}

// ErrDimensionMismatch indicates a query or document vector whose dimension
// does not match the index.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}

// ErrUnknownIndex indicates a named index that has not been created.
type ErrUnknownIndex struct {
	Name string
}

func (e ErrUnknownIndex) Error() string {
	return fmt.Sprintf("unknown index %q", e.Name)
}
