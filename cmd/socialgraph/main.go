package main

import (
	"os"

	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "socialgraph",
		Short: "Social graph service",
		Long: `Tracks users and their mutual connections and answers friends,
friends-of-friends and degree-of-separation queries.

Configuration is read from environment variables (STORE_BACKEND, SQLITE_DSN,
DYNAMODB_TABLE, SERVER_ADDRESS, ...).`,
		SilenceUsage: true,
	}
}

func main() {
	rootCmd := newRootCommand()
	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newMigrateCommand())
	rootCmd.AddCommand(newVersionCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
