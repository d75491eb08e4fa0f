// Command linkhoardd runs the bookmark enrichment daemon: the HTTP API
// plus the background job runner.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/dlnorman/linkhoard/internal/api"
	"github.com/dlnorman/linkhoard/internal/archive"
	"github.com/dlnorman/linkhoard/internal/clock/system"
	"github.com/dlnorman/linkhoard/internal/config"
	"github.com/dlnorman/linkhoard/internal/fetch"
	"github.com/dlnorman/linkhoard/internal/hash/sha256"
	"github.com/dlnorman/linkhoard/internal/linkcheck"
	"github.com/dlnorman/linkhoard/internal/logging"
	"github.com/dlnorman/linkhoard/internal/metrics"
	"github.com/dlnorman/linkhoard/internal/renderer"
	"github.com/dlnorman/linkhoard/internal/runner"
	"github.com/dlnorman/linkhoard/internal/store"
	"github.com/dlnorman/linkhoard/internal/thumb"
)

func main() {
	configPath := flag.String("config", "", "path to config file (optional)")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "linkhoardd: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := store.Connect(ctx, cfg.DB)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := store.Migrate(ctx, pool, logger); err != nil {
		return err
	}
	db := store.New(pool)

	fetcher := fetch.New(cfg.Fetch, logger)
	checker := linkcheck.New(fetcher, logger)
	archiver := archive.New(cfg.Archive, fetcher, logger)

	clk := system.New()
	saver := thumb.NewSaver(cfg.Thumbs.RootDir, sha256.New(), clk)

	var pageRenderer thumb.Renderer = renderer.NewNoop()
	if cfg.Renderer.Enabled {
		cr, err := renderer.NewChromedp(renderer.Config{
			MaxParallel:       cfg.Renderer.MaxParallel,
			UserAgent:         cfg.Fetch.UserAgent,
			NavigationTimeout: cfg.Renderer.NavTimeout(),
			ViewportWidth:     cfg.Renderer.ViewportWidth,
			ViewportHeight:    cfg.Renderer.ViewportHeight,
		})
		if err != nil {
			return fmt.Errorf("start renderer: %w", err)
		}
		defer cr.Close()
		pageRenderer = cr
	}

	pipeline := thumb.New(cfg, fetcher, pageRenderer, saver, logger)
	jobRunner := runner.New(db, pipeline, saver, checker, archiver, clk, cfg.Queue, logger)

	go jobRunner.Run(ctx)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           api.New(db, jobRunner, logger).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", server.Addr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}
