package embed

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticEmbedder_Deterministic(t *testing.T) {
	e := NewStaticEmbedder()
	defer e.Close()
	ctx := context.Background()

	a, err := e.Embed(ctx, "func parseConfig(path string) error")
	require.NoError(t, err)
	b, err := e.Embed(ctx, "func parseConfig(path string) error")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, StaticDimensions)
}

func TestStaticEmbedder_DistinctTextsDiffer(t *testing.T) {
	e := NewStaticEmbedder()
	defer e.Close()
	ctx := context.Background()

	a, err := e.Embed(ctx, "parse a configuration file")
	require.NoError(t, err)
	b, err := e.Embed(ctx, "open a network connection")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestStaticEmbedder_Normalized(t *testing.T) {
	e := NewStaticEmbedder()
	defer e.Close()

	vec, err := e.Embed(context.Background(), "compute vector magnitude")
	require.NoError(t, err)

	var sumSq float64
	for _, v := range vec {
		sumSq += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sumSq), 1e-5)
}

func TestStaticEmbedder_EmptyTextIsZeroVector(t *testing.T) {
	e := NewStaticEmbedder()
	defer e.Close()

	vec, err := e.Embed(context.Background(), "   ")
	require.NoError(t, err)
	require.Len(t, vec, StaticDimensions)
	for _, v := range vec {
		assert.Zero(t, v)
	}
}

func TestStaticEmbedder_Batch(t *testing.T) {
	e := NewStaticEmbedder()
	defer e.Close()
	ctx := context.Background()

	texts := []string{"first text", "second text", ""}
	vectors, err := e.EmbedBatch(ctx, texts)
	require.NoError(t, err)
	require.Len(t, vectors, len(texts))

	single, err := e.Embed(ctx, texts[0])
	require.NoError(t, err)
	assert.Equal(t, single, vectors[0])
}

func TestStaticEmbedder_Close(t *testing.T) {
	e := NewStaticEmbedder()
	ctx := context.Background()

	assert.True(t, e.Available(ctx))
	require.NoError(t, e.Close())
	assert.False(t, e.Available(ctx))

	_, err := e.Embed(ctx, "anything")
	assert.Error(t, err)
}

func TestStaticEmbedder_Metadata(t *testing.T) {
	e := NewStaticEmbedder()
	defer e.Close()

	assert.Equal(t, StaticDimensions, e.Dimensions())
	assert.Equal(t, "static-hash-v1", e.ModelName())
}
