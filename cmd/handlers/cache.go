package handlers

import (
	"fmt"

	"nook/internal/config"
	"nook/internal/logger"
	"nook/internal/store"

	"github.com/spf13/cobra"
)

// NewCacheCmd creates the cache management command
func NewCacheCmd() *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the content cache",
		Long:  `Inspect and clear the SQLite cache of resolved articles and summaries.`,
	}

	cacheCmd.AddCommand(newCacheFlushCmd())

	return cacheCmd
}

func newCacheFlushCmd() *cobra.Command {
	var urlOnly string

	flushCmd := &cobra.Command{
		Use:   "flush",
		Short: "Remove cached content",
		Long: `Remove cached articles and summaries from the SQLite database.

Without flags the entire cache is cleared. With --url only the entries
for that URL are removed, forcing a re-fetch on the next request.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCacheFlush(urlOnly)
		},
	}

	flushCmd.Flags().StringVar(&urlOnly, "url", "", "Flush only the cache entries for this URL")
	return flushCmd
}

func runCacheFlush(urlOnly string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	st, err := store.NewStore(cfg.App.DataDir)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Error("Failed to close store", err)
		}
	}()

	if urlOnly != "" {
		if err := st.DeleteCacheEntry(urlOnly); err != nil {
			return fmt.Errorf("failed to flush cache entry: %w", err)
		}
		fmt.Printf("Flushed cache entries for %s\n", urlOnly)
		return nil
	}

	if err := st.FlushCache(); err != nil {
		return fmt.Errorf("failed to flush cache: %w", err)
	}
	fmt.Println("Cache flushed")
	return nil
}
