package llm

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/devmind-ai/devmind/internal/search"
)

// DefaultMaxContextTokens bounds assembled context size. Token counts are
// estimated at roughly 4 characters per token.
const DefaultMaxContextTokens = 8000

// mergeAdjacencyLines is how close two blocks from the same file must be to
// merge into one.
const mergeAdjacencyLines = 5

const chatPromptTemplate = `<context>
%s
</context>

User Question: %s

Based ONLY on the context provided above, answer the user's question. Include file paths and line numbers in your answer.

If the context doesn't contain relevant information, say: "I don't have enough information in the codebase to answer this question."

Answer:`

const noResultsAnswer = "I couldn't find any relevant information in the codebase to answer your question."

// ContextBlock is a single retrieval result prepared for the model.
type ContextBlock struct {
	FilePath    string  `json:"file_path"`
	StartLine   int     `json:"start_line"`
	EndLine     int     `json:"end_line"`
	SectionType string  `json:"section_type"`
	Language    string  `json:"language"`
	Content     string  `json:"content"`
	Score       float64 `json:"score"`
}

// Citation points at a context block that backed the answer.
type Citation struct {
	ID          int     `json:"id"`
	FilePath    string  `json:"file_path"`
	StartLine   int     `json:"start_line"`
	EndLine     int     `json:"end_line"`
	SectionType string  `json:"section_type"`
	Language    string  `json:"language"`
	Score       float64 `json:"score"`
}

// AssembledContext is formatted context ready for the model.
type AssembledContext struct {
	FormattedContext string
	Blocks           []ContextBlock
	TotalTokens      int
}

// Answer is a synthesized response with its citations.
type Answer struct {
	Text        string        `json:"text"`
	Citations   []Citation    `json:"citations"`
	Provider    string        `json:"provider"`
	ResultCount int           `json:"result_count"`
	TotalTime   time.Duration `json:"total_time"`
}

// GenerationClient is what the answer builder needs from the rate-limited
// client.
type GenerationClient interface {
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)
}

// AnswerBuilder assembles retrieval results into a cited context prompt and
// asks the generation client for a synthesized answer.
type AnswerBuilder struct {
	client           GenerationClient
	providerName     string
	maxContextTokens int
}

// NewAnswerBuilder creates an answer builder. maxContextTokens <= 0 selects
// the default.
func NewAnswerBuilder(client GenerationClient, providerName string, maxContextTokens int) *AnswerBuilder {
	if maxContextTokens <= 0 {
		maxContextTokens = DefaultMaxContextTokens
	}
	return &AnswerBuilder{
		client:           client,
		providerName:     providerName,
		maxContextTokens: maxContextTokens,
	}
}

// Answer synthesizes an answer from the given retrieval results. Empty
// results short-circuit without a model call.
func (b *AnswerBuilder) Answer(ctx context.Context, query string, results []*search.Result, opts GenerateOptions) (*Answer, error) {
	start := time.Now()

	if len(results) == 0 {
		return &Answer{
			Text:      noResultsAnswer,
			Citations: []Citation{},
			Provider:  "none",
			TotalTime: time.Since(start),
		}, nil
	}

	assembled := b.AssembleContext(results)
	prompt := fmt.Sprintf(chatPromptTemplate, assembled.FormattedContext, query)

	text, err := b.client.Generate(ctx, prompt, opts)
	if err != nil {
		return nil, err
	}

	slog.Debug("answer_generated",
		slog.Int("sources", len(assembled.Blocks)),
		slog.Int("context_tokens", assembled.TotalTokens),
		slog.Duration("latency", time.Since(start)))

	return &Answer{
		Text:        text,
		Citations:   BuildCitations(assembled.Blocks),
		Provider:    b.providerName,
		ResultCount: len(results),
		TotalTime:   time.Since(start),
	}, nil
}

// AssembleContext formats results into numbered source blocks, stopping at
// the token budget.
func (b *AnswerBuilder) AssembleContext(results []*search.Result) *AssembledContext {
	blocks := make([]ContextBlock, 0, len(results))
	parts := make([]string, 0, len(results))
	totalTokens := 0

	for i, res := range results {
		block := ContextBlock{
			FilePath:    res.FilePath,
			StartLine:   res.StartLine,
			EndLine:     res.EndLine,
			SectionType: string(res.SectionType),
			Language:    res.Language,
			Content:     res.Content,
			Score:       res.Score,
		}

		formatted := formatBlock(block, i+1)
		blockTokens := len(formatted) / 4

		if totalTokens+blockTokens > b.maxContextTokens {
			slog.Warn("context_limit_reached",
				slog.Int("block", i+1),
				slog.Int("total_tokens", totalTokens))
			break
		}

		blocks = append(blocks, block)
		parts = append(parts, formatted)
		totalTokens += blockTokens
	}

	return &AssembledContext{
		FormattedContext: strings.Join(parts, "\n\n"),
		Blocks:           blocks,
		TotalTokens:      totalTokens,
	}
}

func formatBlock(block ContextBlock, index int) string {
	return fmt.Sprintf(`[Source %d]
File: %s
Lines: %d-%d
Type: %s
Language: %s
Relevance: %.2f

`+"```%s\n%s\n```",
		index, block.FilePath, block.StartLine, block.EndLine,
		block.SectionType, block.Language, block.Score,
		block.Language, block.Content)
}

// BuildCitations numbers the blocks that made it into the context.
func BuildCitations(blocks []ContextBlock) []Citation {
	citations := make([]Citation, 0, len(blocks))
	for i, block := range blocks {
		citations = append(citations, Citation{
			ID:          i + 1,
			FilePath:    block.FilePath,
			StartLine:   block.StartLine,
			EndLine:     block.EndLine,
			SectionType: block.SectionType,
			Language:    block.Language,
			Score:       block.Score,
		})
	}
	return citations
}

// MergeOverlappingBlocks collapses blocks from the same file whose line
// ranges overlap or nearly touch.
func MergeOverlappingBlocks(blocks []ContextBlock) []ContextBlock {
	if len(blocks) == 0 {
		return nil
	}

	byFile := make(map[string][]ContextBlock)
	var fileOrder []string
	for _, block := range blocks {
		if _, ok := byFile[block.FilePath]; !ok {
			fileOrder = append(fileOrder, block.FilePath)
		}
		byFile[block.FilePath] = append(byFile[block.FilePath], block)
	}

	var merged []ContextBlock
	for _, path := range fileOrder {
		fileBlocks := byFile[path]
		sort.SliceStable(fileBlocks, func(i, j int) bool {
			return fileBlocks[i].StartLine < fileBlocks[j].StartLine
		})

		current := fileBlocks[0]
		for _, next := range fileBlocks[1:] {
			if next.StartLine <= current.EndLine+mergeAdjacencyLines {
				if next.EndLine > current.EndLine {
					current.EndLine = next.EndLine
				}
				current.Content = current.Content + "\n\n" + next.Content
				if next.Score > current.Score {
					current.Score = next.Score
				}
			} else {
				merged = append(merged, current)
				current = next
			}
		}
		merged = append(merged, current)
	}

	return merged
}
