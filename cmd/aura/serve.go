package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/klauspost/compress/gzhttp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ewilliams-labs/aura/internal/adapters/deezer"
	"github.com/ewilliams-labs/aura/internal/adapters/gemini"
	"github.com/ewilliams-labs/aura/internal/adapters/rest"
	"github.com/ewilliams-labs/aura/internal/adapters/sqlite"
	"github.com/ewilliams-labs/aura/internal/adapters/web"
	"github.com/ewilliams-labs/aura/internal/config"
	"github.com/ewilliams-labs/aura/internal/core/services"
	"github.com/ewilliams-labs/aura/internal/worker"
)

const (
	janitorInterval = 10 * time.Minute
	shutdownTimeout = 10 * time.Second
	// added to the upstream timeout to cover queueing before a loading
	// session is considered lost
	staleMargin = time.Minute
)

var (
	addrFlag    string
	dbFlag      string
	workersFlag int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web app and JSON API",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&addrFlag, "addr", "", "Listen address (env AURA_ADDR)")
	serveCmd.Flags().StringVar(&dbFlag, "db", "", "SQLite path for sessions, :memory: keeps them in process (env AURA_DB_PATH)")
	serveCmd.Flags().IntVar(&workersFlag, "workers", 0, "Background workers for capability calls (env AURA_WORKERS)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("addr") {
		cfg.Addr = addrFlag
	}
	if cmd.Flags().Changed("db") {
		cfg.DBPath = dbFlag
	}
	if cmd.Flags().Changed("workers") {
		cfg.Workers = workersFlag
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	initLogging(cmd, cfg)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	baseCtx := log.Logger.WithContext(context.Background())

	// 1. Driven adapters
	httpClient := &http.Client{Timeout: cfg.UpstreamTimeout}

	composer, err := gemini.NewClient(ctx, gemini.Options{
		APIKey:     cfg.GeminiAPIKey,
		Model:      cfg.GeminiModel,
		BaseURL:    cfg.GeminiBaseURL,
		HTTPClient: httpClient,
	})
	if err != nil {
		return err
	}
	if !composer.Configured() {
		log.Warn().Msg("GEMINI_API_KEY is not set; symphony generation will report a configuration error")
	}

	finder := deezer.NewClient(httpClient, cfg.DeezerBaseURL, cfg.TrackRelayURL)

	repo, err := sqlite.NewAdapter(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to initialize session store: %w", err)
	}
	defer repo.Close()

	pool := worker.NewPool(cfg.QueueSize)
	pool.Start(baseCtx, cfg.Workers)
	defer pool.Stop()

	// 2. Core
	svc := services.NewOrchestrator(composer, finder, repo, pool)
	svc.SetStaleAfter(cfg.UpstreamTimeout + staleMargin)
	n, err := svc.AbandonInFlight(baseCtx)
	if err != nil {
		return fmt.Errorf("failed to recover in-flight sessions: %w", err)
	}
	if n > 0 {
		log.Warn().Int("sessions", n).Msg("Failed requests interrupted by the last shutdown")
	}

	// 3. Driving adapters
	handler := gzhttp.GzipHandler(rest.NewHandler(svc, web.NewHandler(svc, cfg.SecureCookie)))
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 15 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}

	log.Info().
		Str("addr", cfg.Addr).
		Str("model", cfg.GeminiModel).
		Str("db", cfg.DBPath).
		Int("workers", cfg.Workers).
		Bool("relay", cfg.TrackRelayURL != "").
		Msg("🎶 Aura is listening")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		runJanitor(gctx, svc, cfg)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// runJanitor purges idle sessions until ctx is done.
func runJanitor(ctx context.Context, svc *services.Orchestrator, cfg config.Config) {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := svc.PurgeIdle(ctx, cfg.SessionTTL)
			if err != nil {
				log.Warn().Err(err).Msg("Session purge failed")
				continue
			}
			if n > 0 {
				log.Info().Int64("purged", n).Msg("Purged idle sessions")
			}
		}
	}
}
