package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"nook/internal/clean"
	"nook/internal/config"
	"nook/internal/fetch"
	"nook/internal/logger"
	"nook/internal/resolve"
	"nook/internal/sources"
	"nook/internal/store"

	"github.com/spf13/cobra"
)

// NewUnlockCmd creates the unlock command for one-shot URL resolution
func NewUnlockCmd() *cobra.Command {
	var asText bool

	cmd := &cobra.Command{
		Use:   "unlock <url>",
		Short: "Resolve a single URL into a clean article",
		Long: `Resolve a URL through the source adapters and print the result.

By default the full result is printed as JSON, including the rendered
article HTML and its metadata. With --text only the extracted plain
text is printed, which is useful for piping into other tools.

Examples:
  nook unlock https://medium.com/@author/some-article
  nook unlock --text https://example.com/essay | less`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUnlock(cmd.Context(), args[0], asText)
		},
	}

	cmd.Flags().BoolVar(&asText, "text", false, "Print extracted plain text instead of JSON")

	return cmd
}

func runUnlock(ctx context.Context, rawURL string, asText bool) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger.SetLevel(cfg.App.LogLevel)

	st, err := store.NewStore(cfg.App.DataDir)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Error("Failed to close store", err)
		}
	}()

	client := fetch.New(cfg.Fetch)
	cleaner := clean.New(cfg.Sources.ImageProxyURL)
	registry := sources.NewRegistry(client, cleaner, cfg.Sources)
	resolver := resolve.New(registry, st, cleaner, cfg.Cache.TTL())

	if asText {
		text, source, err := resolver.Text(ctx, rawURL)
		if err != nil {
			return err
		}
		logger.Debug("Resolved article text", "url", rawURL, "source", source)
		fmt.Println(text)
		return nil
	}

	result, err := resolver.Unlock(ctx, rawURL)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
