package keyword

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devmind-ai/devmind/internal/store"
)

func makeChunk(id, content string) *store.Chunk {
	return &store.Chunk{
		ID:       id,
		Content:  content,
		FilePath: id + ".go",
		Language: "go",
	}
}

func buildTestIndex(t *testing.T, chunks ...*store.Chunk) *Index {
	t.Helper()
	idx := New(DefaultConfig())
	idx.Build(chunks)
	return idx
}

func TestSearch_RankingAndNormalization(t *testing.T) {
	idx := buildTestIndex(t,
		makeChunk("a", "database connection pool handles database queries"),
		makeChunk("b", "database driver"),
		makeChunk("c", "http router middleware"),
	)

	results := idx.Search("database", 10)
	require.Len(t, results, 2)

	// Top result is normalized to exactly 1.0
	assert.Equal(t, 1.0, results[0].Score)

	// Scores are non-increasing
	for i := 1; i < len(results); i++ {
		assert.LessOrEqual(t, results[i].Score, results[i-1].Score)
	}

	// Zero-match chunk is excluded
	for _, r := range results {
		assert.NotEqual(t, "c", r.Chunk.ID)
	}
}

func TestSearch_MatchedTerms(t *testing.T) {
	idx := buildTestIndex(t,
		makeChunk("a", "parse yaml config file"),
		makeChunk("b", "render html template"),
	)

	results := idx.Search("parse config", 10)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].Chunk.ID)
	assert.ElementsMatch(t, []string{"parse", "config"}, results[0].MatchedTerms)
}

func TestSearch_EmptyIndex(t *testing.T) {
	idx := New(DefaultConfig())

	assert.False(t, idx.Built())
	assert.Empty(t, idx.Search("anything", 10))

	idx.Build(nil)
	assert.True(t, idx.Built())
	assert.Empty(t, idx.Search("anything", 10))
}

func TestSearch_NoRecognizedTerms(t *testing.T) {
	idx := buildTestIndex(t, makeChunk("a", "database connection"))

	// Stopwords and single characters tokenize to nothing
	assert.Empty(t, idx.Search("the a of", 10))
	assert.Empty(t, idx.Search("", 10))
	assert.Empty(t, idx.Search("xyzzy", 10))
}

func TestSearch_TopKTruncation(t *testing.T) {
	chunks := make([]*store.Chunk, 20)
	for i := range chunks {
		chunks[i] = makeChunk(fmt.Sprintf("c%02d", i), "shared term content")
	}
	idx := buildTestIndex(t, chunks...)

	results := idx.Search("shared", 5)
	assert.Len(t, results, 5)
}

func TestSearch_TiebreakByDocID(t *testing.T) {
	// Identical content scores identically; order falls back to chunk ID.
	idx := buildTestIndex(t,
		makeChunk("b", "identical content"),
		makeChunk("a", "identical content"),
	)

	results := idx.Search("identical", 10)
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].Chunk.ID)
	assert.Equal(t, "b", results[1].Chunk.ID)
}

func TestSearch_CodeAwareTokenization(t *testing.T) {
	idx := buildTestIndex(t,
		makeChunk("a", "func handleUserRequest(w http.ResponseWriter)"),
	)

	// camelCase splits make sub-tokens searchable
	results := idx.Search("user request", 10)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].Chunk.ID)
}

func TestBuild_DuplicateIDsIndexedOnce(t *testing.T) {
	idx := buildTestIndex(t,
		makeChunk("a", "unique payload"),
		makeChunk("a", "unique payload"),
	)

	stats := idx.Stats()
	assert.Equal(t, 1, stats.DocumentCount)
}

func TestBuild_SwapVisibleAtomically(t *testing.T) {
	idx := buildTestIndex(t, makeChunk("a", "first generation content"))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				// Every read sees a complete generation, never a partial one.
				results := idx.Search("generation", 10)
				for _, r := range results {
					assert.NotNil(t, r.Chunk)
					assert.Equal(t, 1.0, results[0].Score)
				}
			}
		}()
	}

	for j := 0; j < 20; j++ {
		idx.Build([]*store.Chunk{
			makeChunk("a", "first generation content"),
			makeChunk("b", "second generation content"),
		})
	}
	wg.Wait()
}

func TestStats(t *testing.T) {
	idx := buildTestIndex(t,
		makeChunk("a", "alpha beta gamma"),
		makeChunk("b", "alpha"),
	)

	stats := idx.Stats()
	assert.Equal(t, 2, stats.DocumentCount)
	assert.Greater(t, stats.TermCount, 0)
	assert.Greater(t, stats.AvgDocLength, 0.0)
}
