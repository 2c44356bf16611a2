package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hyperjump/ragstore/internal/server"
	"github.com/hyperjump/ragstore/internal/watcher"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long:  "Start the HTTP API and ingest files from the watched directories.",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	cmd.Flags().Bool("no-watch", false, "do not watch directories")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, configPath, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	components, err := initializeComponents(ctx, cfg)
	if err != nil {
		return err
	}
	defer components.Close()
	logger := components.Logger
	logger.Info("config loaded", zap.String("config_path", configPath), zap.Bool("debug", cfg.Debug))

	var watch server.WatchService
	if noWatch, _ := cmd.Flags().GetBool("no-watch"); !noWatch {
		w := watcher.New(components.Indexer, cfg.Watch, watcher.WithLogger(logger))
		if err := w.Start(ctx); err != nil {
			return err
		}
		defer w.Stop()
		go func() {
			n := w.SyncExisting(ctx)
			logger.Info("Initial sync finished", zap.Int("files", n))
		}()
		watch = w
	}

	srv := server.NewServer(components.Engine, components.Indexer, cfg, logger, watch, configPath)
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Stop(shutdownCtx)
}
