// Package app provides the commands of the catalog crawler CLI.
package app

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command with all subcommands attached.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:               "catalog-crawler",
		DisableAutoGenTag: true,
		SilenceUsage:      true,
		Short:             "Marketplace catalog crawler",
		Long: `catalog-crawler downloads the seller API category catalog (category names,
attribute metadata and attribute dictionary values) into PostgreSQL, sharding
the work across all configured seller credentials.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().String("config", "", "Path to configuration file (YAML format, optional)")

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newMigrateCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}
