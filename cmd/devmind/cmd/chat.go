package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/devmind-ai/devmind/internal/llm"
	"github.com/devmind-ai/devmind/internal/search"
)

func newChatCmd(configPath *string) *cobra.Command {
	var corpus string
	var topK int

	cmd := &cobra.Command{
		Use:   "chat <question>",
		Short: "Ask a question and synthesize a cited answer",
		Long: `Retrieve the most relevant passages and synthesize an answer.

Generation goes through the rate-limited client: Ollama when reachable,
a static extractive fallback otherwise. Answers cite file paths and line
numbers.

Examples:
  devmind chat "how is authentication handled?" --corpus chunks.jsonl
  devmind chat "where is the retry logic?" --corpus chunks.jsonl --top-k 5`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd, strings.Join(args, " "), *configPath, corpus, topK)
		},
	}

	cmd.Flags().StringVar(&corpus, "corpus", "chunks.jsonl", "Path to JSONL chunk corpus")
	cmd.Flags().IntVarP(&topK, "top-k", "k", 10, "Number of passages to retrieve")

	return cmd
}

func runChat(cmd *cobra.Command, question, configPath, corpus string, topK int) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	eng, err := buildEngine(ctx, configPath, corpus)
	if err != nil {
		return err
	}
	defer eng.close()

	opts := search.DefaultOptions()
	opts.TopK = topK

	results, err := eng.facade.Search(ctx, question, opts)
	if err != nil {
		return err
	}

	limiter := eng.buildLimiter(ctx)
	builder := llm.NewAnswerBuilder(limiter, eng.cfg.Generate.Model, 0)

	genOpts := llm.DefaultGenerateOptions()
	if eng.cfg.Generate.Temperature > 0 {
		genOpts.Temperature = eng.cfg.Generate.Temperature
	}
	if eng.cfg.Generate.MaxTokens > 0 {
		genOpts.MaxTokens = eng.cfg.Generate.MaxTokens
	}

	answer, err := builder.Answer(ctx, question, results, genOpts)
	if err != nil {
		return err
	}

	fmt.Fprintln(out, answer.Text)

	if len(answer.Citations) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Sources:")
		for _, c := range answer.Citations {
			fmt.Fprintf(out, "  [%d] %s:%d-%d (%s, %.3f)\n",
				c.ID, c.FilePath, c.StartLine, c.EndLine, c.Language, c.Score)
		}
	}

	if len(results) > 0 && results[0].Degraded {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "WARNING: answer built from keyword-only results (vector backend unavailable)")
	}
	return nil
}
