package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/conorfennell/knolstudy/internal/config"
	"github.com/conorfennell/knolstudy/internal/storage"
	decksync "github.com/conorfennell/knolstudy/internal/sync"
	"github.com/conorfennell/knolstudy/internal/web"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		slog.Error("knolstudy failed", "error", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	// 1. Load configuration
	cfg, err := config.Load(args)
	if err != nil {
		return err
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Level()})))

	// 2. Open the database
	db, err := storage.Open(cfg.DB)
	if err != nil {
		return err
	}
	defer db.Close()
	slog.Info("Database opened successfully", "path", cfg.DB)

	// 3. Register a new source before syncing
	if cfg.AddSource != "" {
		id, err := decksync.AddSource(db, cfg.AddSource)
		if err != nil {
			return fmt.Errorf("failed to add source: %w", err)
		}
		slog.Info("Source added", "id", id, "path", cfg.AddSource, "type", decksync.SourceType(cfg.AddSource))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	syncOpts := decksync.Options{ReposDir: cfg.ReposDir}
	srv, err := web.NewServer(db,
		web.WithSyncOptions(syncOpts),
		web.WithQuizQuestions(cfg.QuizQuestions),
	)
	if err != nil {
		return err
	}

	// 4. Sync all sources before serving
	if _, err := srv.Sync(ctx); err != nil {
		return err
	}
	if cfg.SyncOnly {
		return nil
	}

	if cfg.SyncInterval > 0 {
		scheduler, err := decksync.Schedule(cfg.SyncInterval, func() {
			if _, err := srv.Sync(ctx); err != nil {
				slog.Error("Scheduled sync failed", "error", err)
			}
		})
		if err != nil {
			return err
		}
		defer scheduler.Stop()
		slog.Info("Periodic sync enabled", "interval", cfg.SyncInterval)
	}

	// 5. Serve until a signal arrives
	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting server", "addr", cfg.Addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}
