package cmd

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/msalah0e/kgraph/internal/config"
	"github.com/msalah0e/kgraph/internal/ui"
	"github.com/spf13/cobra"
)

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or create the configuration file",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the effective configuration",
			RunE: func(cmd *cobra.Command, args []string) error {
				return toml.NewEncoder(os.Stdout).Encode(cfg)
			},
		},
		&cobra.Command{
			Use:   "init",
			Short: "Write a default config file if none exists",
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := config.EnsureExists(); err != nil {
					return err
				}
				ui.Good.Printf("  %s %s\n", ui.StatusIcon(true), config.Path())
				return nil
			},
		},
		&cobra.Command{
			Use:   "path",
			Short: "Print the config file path",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Println(config.Path())
			},
		},
	)

	return cmd
}
