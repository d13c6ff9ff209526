package embed

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"

	"github.com/devmind-ai/devmind/internal/store"
)

// Feature weights for vector generation.
const (
	tokenWeight = 0.7
	ngramWeight = 0.3
	ngramSize   = 3
)

// StaticEmbedder generates embeddings by hashing tokens and character
// n-grams into a fixed-size vector. It needs no network or model download
// and is fully deterministic, at the cost of semantic quality. Used as the
// local fallback and in tests.
type StaticEmbedder struct {
	mu        sync.RWMutex
	closed    bool
	stopWords map[string]struct{}
}

// Verify interface implementation at compile time
var _ Embedder = (*StaticEmbedder)(nil)

// NewStaticEmbedder creates a new static embedder.
func NewStaticEmbedder() *StaticEmbedder {
	return &StaticEmbedder{
		stopWords: store.BuildStopWordMap(store.DefaultStopWords),
	}
}

// Embed generates the embedding for a single text.
func (e *StaticEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return nil, fmt.Errorf("embedder is closed")
	}
	e.mu.RUnlock()

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return make([]float32, StaticDimensions), nil
	}

	return normalizeVector(e.generateVector(trimmed)), nil
}

// EmbedBatch generates embeddings for multiple texts.
func (e *StaticEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		vectors[i] = vec
	}
	return vectors, nil
}

// generateVector creates a hash-based vector from text.
func (e *StaticEmbedder) generateVector(text string) []float32 {
	vector := make([]float32, StaticDimensions)

	tokens := store.Tokenize(text, e.stopWords)
	for _, token := range tokens {
		vector[hashToIndex(token)] += tokenWeight
	}

	normalized := strings.ToLower(strings.Join(strings.Fields(text), " "))
	for _, ngram := range extractNgrams(normalized, ngramSize) {
		vector[hashToIndex(ngram)] += ngramWeight
	}

	return vector
}

// hashToIndex maps a string to a vector index via FNV-1a.
func hashToIndex(s string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return int(h.Sum32() % uint32(StaticDimensions))
}

// extractNgrams returns all character n-grams of the given size.
func extractNgrams(s string, n int) []string {
	runes := []rune(s)
	if len(runes) < n {
		return nil
	}
	ngrams := make([]string, 0, len(runes)-n+1)
	for i := 0; i+n <= len(runes); i++ {
		ngrams = append(ngrams, string(runes[i:i+n]))
	}
	return ngrams
}

// Dimensions returns the embedding dimension.
func (e *StaticEmbedder) Dimensions() int {
	return StaticDimensions
}

// ModelName returns the model identifier.
func (e *StaticEmbedder) ModelName() string {
	return "static-hash-v1"
}

// Available always returns true until closed.
func (e *StaticEmbedder) Available(ctx context.Context) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return !e.closed
}

// Close releases resources.
func (e *StaticEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}
