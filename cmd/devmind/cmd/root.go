// Package cmd provides the CLI commands for DevMind.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/devmind-ai/devmind/pkg/version"
)

// NewRootCmd creates the root command for the devmind CLI.
func NewRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "devmind",
		Short: "Semantic code search with resilient retrieval",
		Long: `DevMind answers natural-language questions about a codebase.

It combines BM25 keyword search and semantic vector search with weighted
reranking, falls back to keyword-only results when the vector backend is
unhealthy, and rate-limits outbound language-model calls.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.SetVersionTemplate("devmind version {{.Version}}\n")

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file (default .devmind.yaml)")

	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newSearchCmd(&configPath))
	cmd.AddCommand(newChatCmd(&configPath))
	cmd.AddCommand(newStatusCmd(&configPath))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
