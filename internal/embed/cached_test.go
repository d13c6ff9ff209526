package embed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingEmbedder wraps the static embedder and counts model calls.
type countingEmbedder struct {
	*StaticEmbedder
	embedCalls int
	batchCalls int
}

func (e *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.embedCalls++
	return e.StaticEmbedder.Embed(ctx, text)
}

func (e *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.batchCalls++
	return e.StaticEmbedder.EmbedBatch(ctx, texts)
}

func TestCachedEmbedder_RepeatHitsCache(t *testing.T) {
	inner := &countingEmbedder{StaticEmbedder: NewStaticEmbedder()}
	cached := NewCachedEmbedder(inner, 10)
	defer cached.Close()
	ctx := context.Background()

	first, err := cached.Embed(ctx, "same query text")
	require.NoError(t, err)
	second, err := cached.Embed(ctx, "same query text")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.embedCalls)
}

func TestCachedEmbedder_BatchFillsPartially(t *testing.T) {
	inner := &countingEmbedder{StaticEmbedder: NewStaticEmbedder()}
	cached := NewCachedEmbedder(inner, 10)
	defer cached.Close()
	ctx := context.Background()

	warm, err := cached.Embed(ctx, "already cached")
	require.NoError(t, err)

	vectors, err := cached.EmbedBatch(ctx, []string{"already cached", "fresh text"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, warm, vectors[0])
	assert.Equal(t, 1, inner.batchCalls)

	// Fully cached batch never reaches the inner embedder.
	_, err = cached.EmbedBatch(ctx, []string{"already cached", "fresh text"})
	require.NoError(t, err)
	assert.Equal(t, 1, inner.batchCalls)
}

func TestCachedEmbedder_EmptyBatch(t *testing.T) {
	cached := NewCachedEmbedder(NewStaticEmbedder(), 10)
	defer cached.Close()

	vectors, err := cached.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vectors)
}

func TestCachedEmbedder_Passthrough(t *testing.T) {
	inner := NewStaticEmbedder()
	cached := NewCachedEmbedder(inner, 0)
	defer cached.Close()

	assert.Equal(t, inner.Dimensions(), cached.Dimensions())
	assert.Equal(t, inner.ModelName(), cached.ModelName())
	assert.True(t, cached.Available(context.Background()))
}
