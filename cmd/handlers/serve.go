package handlers

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"nook/internal/auth"
	"nook/internal/billing"
	"nook/internal/clean"
	"nook/internal/config"
	"nook/internal/feeds"
	"nook/internal/fetch"
	"nook/internal/llm"
	"nook/internal/logger"
	"nook/internal/resolve"
	"nook/internal/server"
	"nook/internal/sources"
	"nook/internal/store"

	"github.com/spf13/cobra"
)

// NewServeCmd creates the serve command for starting the HTTP server
func NewServeCmd() *cobra.Command {
	var (
		port int
		host string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Long: `Start the Nook API server.

The server provides:
  • POST /api/unlock      resolve a URL into clean article HTML
  • POST /api/summarize   summarize a resolved article
  • POST /api/chat        ask questions about a resolved article
  • /api/articles         the saved-article library
  • GET  /api/discover    aggregated RSS recommendations
  • /api/payments/verify  signed payment webhook for tier upgrades

Examples:
  # Start server on default port 8080
  nook serve

  # Start on custom port
  nook serve --port 3000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(port, host)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "HTTP server port (default from config: 8080)")
	cmd.Flags().StringVar(&host, "host", "", "HTTP server host (default from config: 0.0.0.0)")

	return cmd
}

func runServe(port int, host string) error {
	log := logger.Get()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger.SetLevel(cfg.App.LogLevel)

	// Override server config from flags if provided
	serverCfg := cfg.Server
	if port != 0 {
		serverCfg.Port = port
	}
	if host != "" {
		serverCfg.Host = host
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

	client := fetch.New(cfg.Fetch)
	cleaner := clean.New(cfg.Sources.ImageProxyURL)
	registry := sources.NewRegistry(client, cleaner, cfg.Sources)
	resolver := resolve.New(registry, st, cleaner, cfg.Cache.TTL())

	chain, err := llm.NewChain(cfg.AI)
	if err != nil {
		return fmt.Errorf("failed to initialize AI providers: %w", err)
	}

	srv := server.New(serverCfg, server.Deps{
		Store:    st,
		Resolver: resolver,
		Chain:    chain,
		Verifier: auth.NewStaticVerifier(cfg.AuthToken),
		Quota:    auth.NewQuota(st, cfg.Quotas),
		Billing:  billing.NewService(billing.NewHMACVerifier(cfg.Billing.WebhookSecret), st),
		Feeds:    feeds.New(cfg.Feeds),
		CacheTTL: cfg.Cache.TTL(),
	})

	// Channel to listen for errors coming from the server
	serverErrors := make(chan error, 1)

	go func() {
		log.Info(fmt.Sprintf("Server listening on http://%s:%d", serverCfg.Host, serverCfg.Port))
		log.Info("Press Ctrl+C to stop")
		serverErrors <- srv.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive our signal or an error from the server
	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		log.Info("Server shutdown initiated", "signal", sig.String())

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}

		log.Info("Server stopped successfully")
	}

	return nil
}
