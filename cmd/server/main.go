package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	cli "github.com/urfave/cli/v2"

	"github.com/backy/backend/internal/config"
	"github.com/backy/backend/internal/logging"
)

func main() {
	_ = godotenv.Load()

	app := &cli.App{
		Name:   "backy-server",
		Usage:  "form submission and comment intake API",
		Flags:  config.Flags(),
		Action: serve,
	}
	if err := app.Run(os.Args); err != nil {
		logging.Fatal("exiting", "error", err)
	}
}

func serve(cctx *cli.Context) error {
	cfg, err := config.FromCLI(cctx)
	if err != nil {
		return err
	}
	logging.Setup("backy-server", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv, err := newServer(ctx, cfg)
	if err != nil {
		return err
	}
	defer srv.Close()

	// バックグラウンドの掃除処理
	srv.startJanitors(ctx)

	httpServer := &http.Server{
		Addr:         cfg.Addr,
		Handler:      srv.routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", httpServer.Addr,
			"storage", srv.storage, "moderation_store", srv.moderationStore)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
	// in-flight webhook deliveries finish before exit
	srv.tracker.Wait()
	return nil
}
