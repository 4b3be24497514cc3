/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the minijob billing server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse configuration (flags + environment)
  2. Initialize SQLite store
  3. Build timeline, ledger, API handler
  4. Start HTTP server and active-flag scheduler
  5. Shut down gracefully on SIGINT/SIGTERM

SEE ALSO:
  - api/server.go: Router configuration
  - config/config.go: Configuration parsing
*/
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/lohnwerk/minijob-engine/api"
	"github.com/lohnwerk/minijob-engine/billing"
	"github.com/lohnwerk/minijob-engine/config"
	"github.com/lohnwerk/minijob-engine/store/sqlite"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()
	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err)
	}

	store, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err)
	}
	defer store.Close()

	timeline := billing.NewTimeline(store)
	ledger := billing.NewLedger(store, timeline)

	handler := api.NewHandler(api.Deps{
		Employees: store,
		Entries:   store,
		Timeline:  timeline,
		Ledger:    ledger,
		Log:       sugar,
	})

	scheduler := api.NewActiveFlagScheduler(timeline, sugar)
	scheduler.CheckInterval = cfg.SchedulerInterval
	scheduler.Start()
	defer scheduler.Stop()

	server := &http.Server{
		Addr:         cfg.RunAddress,
		Handler:      api.NewRouter(handler),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		sugar.Infow("server starting", "address", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			sugar.Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	sugar.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		sugar.Fatalw("server forced to shutdown", "error", err)
	}

	sugar.Info("server stopped")
}
