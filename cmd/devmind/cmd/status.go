package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newStatusCmd(configPath *string) *cobra.Command {
	var corpus string
	var format string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show façade health and rate-limiter state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, *configPath, corpus, format)
		},
	}

	cmd.Flags().StringVar(&corpus, "corpus", "chunks.jsonl", "Path to JSONL chunk corpus")
	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, json")

	return cmd
}

func runStatus(cmd *cobra.Command, configPath, corpus, format string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	eng, err := buildEngine(ctx, configPath, corpus)
	if err != nil {
		return err
	}
	defer eng.close()

	facadeStatus := eng.facade.Status()
	limiterStatus := eng.buildLimiter(ctx).Status()
	metrics := eng.metrics.Snapshot()

	if format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"search":     facadeStatus,
			"generation": limiterStatus,
			"metrics":    metrics,
		})
	}

	fmt.Fprintln(out, "Search:")
	fmt.Fprintf(out, "  healthy:              %v\n", facadeStatus.Healthy)
	fmt.Fprintf(out, "  consecutive failures: %d\n", facadeStatus.ConsecutiveFailures)
	fmt.Fprintf(out, "  cache available:      %v\n", facadeStatus.CacheAvailable)
	fmt.Fprintf(out, "  vectors indexed:      %d\n", eng.vectors.Count())

	fmt.Fprintln(out, "Generation:")
	fmt.Fprintf(out, "  queue:                %d/%d\n", limiterStatus.QueueSize, limiterStatus.QueueCapacity)
	fmt.Fprintf(out, "  capacity remaining:   %d\n", limiterStatus.CapacityRemaining)
	fmt.Fprintf(out, "  utilization:          %.0f%%\n", limiterStatus.Utilization*100)
	fmt.Fprintf(out, "  fallback available:   %v\n", limiterStatus.FallbackAvailable)

	fmt.Fprintln(out, "Queries:")
	fmt.Fprintf(out, "  total:                %d\n", metrics.TotalQueries)
	fmt.Fprintf(out, "  zero-result:          %d\n", metrics.ZeroResultCount)
	fmt.Fprintf(out, "  degraded:             %d\n", metrics.DegradedCount)

	return nil
}
