package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/devmind-ai/devmind/configs"
	"github.com/devmind-ai/devmind/internal/config"
)

// newInitCmd creates the init command, which writes a commented starter
// config to the current directory.
func newInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Generate a starter " + config.DefaultConfigFile + " in the current directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.DefaultConfigFile

			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}

			if err := os.WriteFile(path, []byte(configs.ConfigTemplate), 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", path, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")
	return cmd
}
