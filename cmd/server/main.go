/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the adboost advertising platform server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load environment config, apply command-line flag overrides
  2. Initialize structured logging
  3. Initialize SQLite store and reconcile balances against the ledger
  4. Create API handler with dependencies
  5. Start the daily-debit scheduler (if enabled)
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (overrides SERVER_PORT)
  -db      SQLite database path (overrides DB_PATH)
           Use ":memory:" for in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the scheduler and close the database
  4. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/adboost.db"

  # Run with in-memory database
  ./server -db=":memory:"

  # Run on a different port
  ./server -port=3000

ENVIRONMENT:
  SERVER_PORT, SERVER_CLICK_RATE, DB_PATH, SCHEDULER_ENABLED,
  SCHEDULER_INTERVAL_MINUTES, APP_ENVIRONMENT, APP_LOG_LEVEL.
  See config/config.go for the full list and defaults.

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/warp/adboost/api"
	"github.com/warp/adboost/config"
	"github.com/warp/adboost/logger"
	"github.com/warp/adboost/store/sqlite"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load(ctx)
	if err != nil {
		panic(err)
	}

	// Flags override the environment for local development.
	port := flag.Int("port", cfg.Server.Port, "HTTP server port")
	dbPath := flag.String("db", cfg.Database.Path, "SQLite database path")
	flag.Parse()
	cfg.Server.Port = *port
	cfg.Database.Path = *dbPath

	log, err := logger.New(cfg.App.LogLevel, cfg.App.Environment)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// Initialize store
	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		log.Fatal("failed to initialize database", zap.Error(err))
	}
	defer store.Close()

	// Heal any balance drift against the ledger before serving traffic.
	healed, err := store.Reconcile(ctx)
	if err != nil {
		log.Fatal("balance reconciliation failed", zap.Error(err))
	}
	if healed > 0 {
		log.Warn("reconciled drifted merchant balances", zap.Int("merchants", healed))
	}

	handler := api.NewHandler(store, log)
	router := api.NewRouter(handler, api.RouterOptions{
		ClickRatePerSecond: cfg.Server.ClickRatePerSecond,
		ClickBurst:         cfg.Server.ClickBurst,
	})

	var scheduler *api.DailyDebitScheduler
	if cfg.Scheduler.Enabled {
		interval := time.Duration(cfg.Scheduler.IntervalMinutes) * time.Minute
		scheduler = api.NewDailyDebitScheduler(handler.Ads, interval, log)
		scheduler.Start()
	}

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	go func() {
		log.Info("server starting",
			zap.String("addr", server.Addr),
			zap.String("environment", cfg.App.Environment))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}
	if scheduler != nil {
		scheduler.Stop()
	}

	log.Info("server stopped")
}
