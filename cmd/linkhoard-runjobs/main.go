// Command linkhoard-runjobs processes one queue batch and exits. Meant for
// cron or manual invocation.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/dlnorman/linkhoard/internal/archive"
	"github.com/dlnorman/linkhoard/internal/clock/system"
	"github.com/dlnorman/linkhoard/internal/config"
	"github.com/dlnorman/linkhoard/internal/fetch"
	"github.com/dlnorman/linkhoard/internal/hash/sha256"
	"github.com/dlnorman/linkhoard/internal/linkcheck"
	"github.com/dlnorman/linkhoard/internal/logging"
	"github.com/dlnorman/linkhoard/internal/renderer"
	"github.com/dlnorman/linkhoard/internal/runner"
	"github.com/dlnorman/linkhoard/internal/store"
	"github.com/dlnorman/linkhoard/internal/thumb"
)

func main() {
	configPath := flag.String("config", "", "path to config file (optional)")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "linkhoard-runjobs: %v\n", err)
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
	jobRunner := runner.New(db, pipeline, saver,
		linkcheck.New(fetcher, logger),
		archive.New(cfg.Archive, fetcher, logger),
		clk, cfg.Queue, logger)

	n, err := jobRunner.RunOnce(ctx)
	if err != nil {
		return err
	}
	logger.Info("batch complete", zap.Int("jobs", n))
	return nil
}
