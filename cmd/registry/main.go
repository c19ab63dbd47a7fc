// Command registry runs the carbon credit registry API and its maintenance
// tasks.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"carbon-scribe/credit-registry-backend/internal/config"
)

const appName = "registry"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Carbon credit registry backend",
		Long: `Registry tracks carbon projects from field data through verification
to issued credits, and runs a marketplace for reselling them.

Configuration is read from an optional JSON or YAML file, a .env file and
environment variables, in that order of precedence.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.json", "Config file path (JSON or YAML)")

	cmd.AddCommand(
		serveCmd(&configPath),
		sweepCmd(&configPath),
		migrateCmd(&configPath),
		tokenCmd(&configPath),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", appName, config.Version)
			},
		},
	)
	return cmd
}
