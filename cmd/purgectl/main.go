package main

import (
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:          "purgectl",
	Short:        "purgectl - scan, search and purge chat history from the command line",
	SilenceUsage: true,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the journal and scan record tables",
	Args:  cobra.NoArgs,
	RunE:  runMigrate,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show message cache and database status",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan the configured platform and write a fresh message cache",
	Args:  cobra.NoArgs,
	RunE:  runScan,
}

var purgeCmd = &cobra.Command{
	Use:   "purge <text>",
	Short: "Find messages containing text and delete them after confirmation",
	RunE:  runPurge,
}

var purgeFlags purgeOptions

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "configs/config.yaml", "Path to configuration file")

	purgeCmd.Flags().StringVar(&purgeFlags.ChannelID, "channel", "", "Only match messages in this channel")
	purgeCmd.Flags().StringVar(&purgeFlags.AuthorID, "author", "", "Only match messages from this author")
	purgeCmd.Flags().IntVar(&purgeFlags.Percentage, "percent", 100, "Delete this percentage of the matches (1-100)")
	purgeCmd.Flags().BoolVarP(&purgeFlags.Yes, "yes", "y", false, "Skip the confirmation prompt")

	rootCmd.AddCommand(migrateCmd, statusCmd, scanCmd, purgeCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
