package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/0xcro3dile/oqgen/internal/adapters/filewatcher"
	"github.com/0xcro3dile/oqgen/internal/domain/ports"
	oqhttp "github.com/0xcro3dile/oqgen/internal/infrastructure/http"
)

var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Run the pipeline for every URS dropped into an inbox directory",
	Long: `Watches a directory (default watch.dir) and runs the pipeline for each URS
file that is created or modified. A failed document is logged and the
watcher keeps running.`,
	Args: cobra.MaximumNArgs(1),
	RunE: watchInbox,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the run API and Prometheus metrics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApplication(cmd.Context(), cfg, logger, ephemeral)
		if err != nil {
			return err
		}
		defer app.Close()

		server := oqhttp.NewServer(app.pipeline, app.runs, app.metrics.Handler(), cfg.Server.Addr, logger)
		return server.Start(cmd.Context())
	},
}

func watchInbox(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	dir := cfg.Watch.Dir
	if len(args) == 1 {
		dir = args[0]
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating inbox %s: %w", dir, err)
	}

	app, err := newApplication(ctx, cfg, logger, ephemeral)
	if err != nil {
		return err
	}
	defer app.Close()

	var watcher ports.FileWatcher
	watcher, err = filewatcher.NewFSNotifyWatcher(docLoader.SupportedExtensions(), cfg.Watch.Debounce, logger)
	if err != nil {
		return err
	}
	logger.Info("Watching inbox", zap.String("dir", dir), zap.Duration("debounce", cfg.Watch.Debounce))
	return drainInbox(ctx, app, watcher, dir)
}

// drainInbox processes watcher events until the watcher closes its channel.
func drainInbox(ctx context.Context, app *application, watcher ports.FileWatcher, dir string) error {
	defer watcher.Stop()

	events, err := watcher.Watch(ctx, dir)
	if err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	for ev := range events {
		if ev.Operation == ports.FileDeleted {
			logger.Debug("Ignoring deleted file", zap.String("path", ev.Path))
			continue
		}
		processInboxFile(ctx, app, ev)
		app.flushMetrics()
	}
	return nil
}

// processInboxFile runs one document. Errors are logged, never returned.
func processInboxFile(ctx context.Context, app *application, ev ports.FileEvent) {
	log := logger.With(zap.String("path", ev.Path), zap.Stringer("op", ev.Operation))

	doc, err := docLoader.Load(ctx, ev.Path)
	if err != nil {
		log.Error("Failed to load URS", zap.Error(err))
		return
	}

	result, err := app.pipeline.Run(ctx, doc)
	if err != nil {
		log.Error("Run failed", zap.Error(err))
		return
	}
	log.Info("Run succeeded",
		zap.String("run_id", result.RunID),
		zap.Int("tests", len(result.Suite.Tests)),
		zap.Float64("coverage", result.Suite.Coverage.Ratio))
}
