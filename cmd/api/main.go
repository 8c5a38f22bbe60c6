package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/MitchWo/Property-Tax-Return-Automation-sub001/internal/adapters/http"
	"github.com/MitchWo/Property-Tax-Return-Automation-sub001/internal/bootstrap"
	"github.com/MitchWo/Property-Tax-Return-Automation-sub001/internal/config"
	"github.com/MitchWo/Property-Tax-Return-Automation-sub001/internal/observability/logging"
)

const service = "review-api"

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger(service, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, service)
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	router := httpadapter.NewRouter(cfg, app.IngestUC, app.Repo, app.Registry).
		WithMetrics(app.Metrics.Handler(), func(next http.Handler) http.Handler {
			return app.Metrics.Middleware(service, next)
		}).
		Handler()
	server := &http.Server{
		Addr:        ":" + cfg.APIPort,
		Handler:     router,
		ReadTimeout: 5 * time.Minute,
		// Progress streams stay open for the whole run.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	go evictClosedChannels(ctx, app, cfg.EvictAfter())

	go func() {
		slog.Info("api_listening", "port", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("api_server_failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("api_shutdown_failed", "error", err)
	}
	slog.Info("waiting_for_review_runs")
	app.IngestUC.Wait()
}

// evictClosedChannels drops finished progress channels nobody streamed.
func evictClosedChannels(ctx context.Context, app *bootstrap.App, after time.Duration) {
	if after <= 0 {
		return
	}
	ticker := time.NewTicker(after / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := app.Registry.EvictClosed(after); n > 0 {
				slog.Info("progress_channels_evicted", "count", n, "remaining", app.Registry.Len())
			}
		}
	}
}
