// Package main provides the entry point for the devmind CLI.
package main

import (
	"os"

	"github.com/devmind-ai/devmind/cmd/devmind/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
