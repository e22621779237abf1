package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const version = "0.1.0"

var configPath string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, styleError.Render(err.Error()))
		os.Exit(1)
	}
}

// newRootCmd builds the command tree.
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "plexcord",
		Short: "Plex library notifications for Discord",
		Long: "Plexcord receives Plex Media Server webhooks and posts a rich notification\n" +
			"to a chat channel whenever a new movie or episode is added to the library.",
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"path to an optional YAML configuration file (environment variables take precedence)")

	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	rootCmd.AddCommand(
		newVersionCmd(),
		newServeCmd(),
		newSampleCmd(),
		newConfigCmd(),
	)
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "Plexcord v%s\n", version)
		},
	}
}
