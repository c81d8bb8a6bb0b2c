package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/FACorreiaa/gift-ledger/internal/domain/ledger/handler"
)

// run serves until ctx is cancelled, then drains in-flight requests within
// the configured shutdown timeout.
func run(ctx context.Context, deps *Dependencies) error {
	cfg := deps.Config

	if n, err := deps.LedgerService.ReindexGuests(ctx); err != nil {
		deps.Logger.Warn("failed to rebuild guest index", slog.Any("error", err))
	} else if n > 0 {
		deps.Logger.Info("guest index ready", slog.Int("guests", n))
	}

	if err := deps.Scheduler.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	router := handler.NewRouter(deps.LedgerHandler, deps.Metrics, handler.RouterConfig{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RatePerSecond:  float64(cfg.Server.RateLimitPerSecond),
		RateBurst:      cfg.Server.RateLimitBurst,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		// OCR of a full batch can take a while.
		WriteTimeout: cfg.OCR.Timeout*2 + 30*time.Second,
		IdleTimeout:  2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		deps.Logger.Info("http server listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	deps.Logger.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}
	return nil
}
