package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticProvider_GenerateExtractsContext(t *testing.T) {
	p := NewStaticProvider()

	prompt := "<context>\n[Source 1]\nFile: math.go\n</context>\n\nUser Question: where is add"
	text, err := p.Generate(context.Background(), prompt, DefaultGenerateOptions())
	require.NoError(t, err)

	assert.Contains(t, text, "No language model is available")
	assert.Contains(t, text, "[Source 1]")
	assert.NotContains(t, text, "User Question")
}

func TestStaticProvider_GenerateWithoutContext(t *testing.T) {
	p := NewStaticProvider()

	text, err := p.Generate(context.Background(), "a bare prompt", DefaultGenerateOptions())
	require.NoError(t, err)
	assert.Contains(t, text, "no relevant passages")
}

func TestStaticProvider_Stream(t *testing.T) {
	p := NewStaticProvider()

	deltas, err := p.Stream(context.Background(), "<context>passage</context>", DefaultGenerateOptions())
	require.NoError(t, err)

	var text string
	var sawDone bool
	for d := range deltas {
		text += d.Text
		sawDone = sawDone || d.Done
		require.NoError(t, d.Err)
	}
	assert.True(t, sawDone)
	assert.Contains(t, text, "passage")
}

func TestStaticProvider_CancelledContext(t *testing.T) {
	p := NewStaticProvider()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Generate(ctx, "anything", DefaultGenerateOptions())
	assert.Error(t, err)
}

func TestStaticProvider_Metadata(t *testing.T) {
	p := NewStaticProvider()
	assert.Equal(t, "static", p.Name())
	assert.True(t, p.Available(context.Background()))
}
