package handlers

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

// NewRootCmd creates the root command with all subcommands attached
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "nook",
		Short: "Nook is a reading service that unlocks, cleans, and summarizes paywalled articles.",
		Long: `Nook resolves paywalled or cluttered URLs into clean, readable articles.

It routes each URL through source-specific adapters (Medium mirrors,
academic open-access lookups, YouTube transcripts, book mirrors) with a
generic readability fallback, caches rendered content in SQLite, and can
summarize or answer questions about an article through a configurable
chain of AI providers.

Run 'nook serve' to start the HTTP API, or 'nook unlock <url>' to
resolve a single article from the command line.`,
	}

	// Add persistent flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./nook.yaml or $HOME/.config/nook/nook.yaml)")

	// Add subcommands
	rootCmd.AddCommand(NewServeCmd())
	rootCmd.AddCommand(NewUnlockCmd())
	rootCmd.AddCommand(NewCacheCmd())
	rootCmd.AddCommand(NewUserCmd())

	return rootCmd
}

// Execute runs the root command
func Execute() {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
