package llm

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devmind-ai/devmind/internal/search"
)

// capturingClient records the prompt it received.
type capturingClient struct {
	prompt   string
	response string
	err      error
}

func (c *capturingClient) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	c.prompt = prompt
	return c.response, c.err
}

func searchResult(id, path string, start, end int, score float64) *search.Result {
	return &search.Result{
		ChunkID:     id,
		Content:     "func " + id + "() {}",
		FilePath:    path,
		StartLine:   start,
		EndLine:     end,
		SectionType: "function",
		Language:    "go",
		Score:       score,
	}
}

func TestAnswerBuilder_Answer(t *testing.T) {
	client := &capturingClient{response: "The add function is in math.go at lines 1-3."}
	builder := NewAnswerBuilder(client, "ollama", 0)

	results := []*search.Result{
		searchResult("add", "math.go", 1, 3, 0.9),
		searchResult("sub", "math.go", 10, 12, 0.7),
	}

	answer, err := builder.Answer(context.Background(), "where is add defined", results, DefaultGenerateOptions())
	require.NoError(t, err)

	assert.Equal(t, client.response, answer.Text)
	assert.Equal(t, "ollama", answer.Provider)
	assert.Equal(t, 2, answer.ResultCount)
	require.Len(t, answer.Citations, 2)
	assert.Equal(t, 1, answer.Citations[0].ID)
	assert.Equal(t, "math.go", answer.Citations[0].FilePath)

	// The prompt carries the context and the question.
	assert.Contains(t, client.prompt, "<context>")
	assert.Contains(t, client.prompt, "[Source 1]")
	assert.Contains(t, client.prompt, "where is add defined")
	assert.Contains(t, client.prompt, "Based ONLY on the context")
}

func TestAnswerBuilder_NoResultsShortCircuits(t *testing.T) {
	client := &capturingClient{response: "should not be called"}
	builder := NewAnswerBuilder(client, "ollama", 0)

	answer, err := builder.Answer(context.Background(), "anything", nil, DefaultGenerateOptions())
	require.NoError(t, err)

	assert.Equal(t, noResultsAnswer, answer.Text)
	assert.Empty(t, answer.Citations)
	assert.Equal(t, "none", answer.Provider)
	assert.Empty(t, client.prompt)
}

func TestAnswerBuilder_AssembleContextFormat(t *testing.T) {
	builder := NewAnswerBuilder(nil, "test", 0)

	assembled := builder.AssembleContext([]*search.Result{
		searchResult("add", "math.go", 1, 3, 0.95),
	})

	require.Len(t, assembled.Blocks, 1)
	assert.Contains(t, assembled.FormattedContext, "[Source 1]")
	assert.Contains(t, assembled.FormattedContext, "File: math.go")
	assert.Contains(t, assembled.FormattedContext, "Lines: 1-3")
	assert.Contains(t, assembled.FormattedContext, "Relevance: 0.95")
	assert.Contains(t, assembled.FormattedContext, "```go")
	assert.Greater(t, assembled.TotalTokens, 0)
}

func TestAnswerBuilder_ContextBudgetTruncates(t *testing.T) {
	// A tiny budget admits the first block only.
	builder := NewAnswerBuilder(nil, "test", 60)

	big := searchResult("handler", "server.go", 1, 50, 0.8)
	big.Content = strings.Repeat("x", 400)

	assembled := builder.AssembleContext([]*search.Result{
		searchResult("add", "math.go", 1, 3, 0.9),
		big,
	})

	require.Len(t, assembled.Blocks, 1)
	assert.Equal(t, "math.go", assembled.Blocks[0].FilePath)
	assert.LessOrEqual(t, assembled.TotalTokens, 60)
}

func TestMergeOverlappingBlocks(t *testing.T) {
	blocks := []ContextBlock{
		{FilePath: "a.go", StartLine: 1, EndLine: 10, Content: "first", Score: 0.5},
		{FilePath: "a.go", StartLine: 12, EndLine: 20, Content: "second", Score: 0.9},
		{FilePath: "a.go", StartLine: 40, EndLine: 50, Content: "third", Score: 0.3},
		{FilePath: "b.go", StartLine: 1, EndLine: 5, Content: "other file", Score: 0.7},
	}

	merged := MergeOverlappingBlocks(blocks)
	require.Len(t, merged, 3)

	// Blocks within five lines of each other merge, keeping the best score
	// and the widest range.
	assert.Equal(t, "a.go", merged[0].FilePath)
	assert.Equal(t, 1, merged[0].StartLine)
	assert.Equal(t, 20, merged[0].EndLine)
	assert.Equal(t, 0.9, merged[0].Score)
	assert.Equal(t, "first\n\nsecond", merged[0].Content)

	assert.Equal(t, 40, merged[1].StartLine)
	assert.Equal(t, "b.go", merged[2].FilePath)
}

func TestMergeOverlappingBlocks_Empty(t *testing.T) {
	assert.Nil(t, MergeOverlappingBlocks(nil))
}
