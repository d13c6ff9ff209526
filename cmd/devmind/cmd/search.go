package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/devmind-ai/devmind/internal/search"
	"github.com/devmind-ai/devmind/internal/store"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	corpus     string
	limit      int
	language   string
	pathPrefix string
	index      string
	format     string // "text", "json"
	noKeyword  bool
	functions  bool
	classes    bool
}

func newSearchCmd(configPath *string) *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the indexed corpus",
		Long: `Search the corpus using hybrid retrieval.

Combines BM25 keyword search and semantic vector search with weighted
reranking. When the vector backend is unhealthy, results fall back to
keyword-only search and are marked as degraded.

Examples:
  devmind search "authentication middleware" --corpus chunks.jsonl
  devmind search "parse config" --corpus chunks.jsonl --language go --limit 5
  devmind search "error handling" --corpus chunks.jsonl --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return runSearch(cmd, query, *configPath, opts)
		},
	}

	cmd.Flags().StringVar(&opts.corpus, "corpus", "chunks.jsonl", "Path to JSONL chunk corpus")
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 10, "Maximum number of results")
	cmd.Flags().StringVarP(&opts.language, "language", "l", "", "Filter by language (e.g., go, python)")
	cmd.Flags().StringVarP(&opts.pathPrefix, "path", "p", "", "Filter by path prefix")
	cmd.Flags().StringVar(&opts.index, "index", "", "Search one named index only (default: all, weighted)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")
	cmd.Flags().BoolVar(&opts.noKeyword, "no-keyword", false, "Disable the BM25 keyword path")
	cmd.Flags().BoolVar(&opts.functions, "functions", false, "Restrict to function and method chunks")
	cmd.Flags().BoolVar(&opts.classes, "classes", false, "Restrict to class and interface chunks")

	return cmd
}

func runSearch(cmd *cobra.Command, query, configPath string, opts searchOptions) error {
	ctx := cmd.Context()

	eng, err := buildEngine(ctx, configPath, opts.corpus)
	if err != nil {
		return err
	}
	defer eng.close()

	searchOpts := search.Options{
		TopK:       opts.limit,
		UseKeyword: !opts.noKeyword,
		IndexName:  opts.index,
		Criteria:   buildCriteria(opts),
	}

	results, err := eng.facade.Search(ctx, query, searchOpts)
	if err != nil {
		return err
	}

	return printResults(cmd, query, results, opts.format)
}

func buildCriteria(opts searchOptions) *search.Criteria {
	c := &search.Criteria{}
	used := false

	if opts.language != "" {
		c.Languages = []string{opts.language}
		used = true
	}
	if opts.pathPrefix != "" {
		c.PathPrefix = opts.pathPrefix
		used = true
	}
	if opts.functions {
		c.SectionTypes = append(c.SectionTypes, store.SectionTypeFunction, store.SectionTypeMethod)
		used = true
	}
	if opts.classes {
		c.SectionTypes = append(c.SectionTypes, store.SectionTypeClass, store.SectionTypeInterface)
		used = true
	}
	if !used {
		return nil
	}
	return c
}

func printResults(cmd *cobra.Command, query string, results []*search.Result, format string) error {
	out := cmd.OutOrStdout()

	if format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	if len(results) == 0 {
		fmt.Fprintf(out, "No results for %q\n", query)
		return nil
	}

	if results[0].Degraded {
		fmt.Fprintln(out, "WARNING: vector backend unavailable, showing keyword-only results")
		fmt.Fprintln(out)
	}

	for i, res := range results {
		fmt.Fprintf(out, "%d. %s:%d-%d  [%.3f]\n", i+1, res.FilePath, res.StartLine, res.EndLine, res.Score)
		fmt.Fprintf(out, "   %s %s", res.Language, res.SectionType)
		if len(res.MatchedTerms) > 0 {
			fmt.Fprintf(out, "  matched: %s", strings.Join(res.MatchedTerms, ", "))
		}
		fmt.Fprintln(out)

		snippet := res.Content
		if idx := strings.IndexByte(snippet, '\n'); idx >= 0 {
			snippet = snippet[:idx]
		}
		if len(snippet) > 120 {
			snippet = snippet[:120] + "..."
		}
		fmt.Fprintf(out, "   %s\n\n", snippet)
	}
	return nil
}
