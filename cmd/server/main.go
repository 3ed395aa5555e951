/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the POS loyalty engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load config (.env, environment), then apply command-line flags
  2. Build the zap logger and the Prometheus registry
  3. Open the SQLite store
  4. Backfill missing order ids and reconcile the directory once
  5. Start the sync scheduler
  6. Start the HTTP server with graceful shutdown

COMMAND-LINE FLAGS (override environment):
  -port       HTTP server port            (POS_PORT, default 8080)
  -db         SQLite database path        (POS_DB_PATH, default pos.db)
              Use ":memory:" for an in-memory database
  -log-level  debug|info|warn|error       (POS_LOG_LEVEL, default info)
  -tz         IANA zone for day/month windows (POS_TIMEZONE, default Local)
  -sync       Scheduler interval          (POS_SYNC_INTERVAL, default 5m)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the scheduler
  4. Close database connection

EXAMPLES:
  ./server -db="./data/pos.db" -tz="Asia/Kolkata"
  ./server -db=":memory:" -log-level=debug

SEE ALSO:
  - config/config.go: Environment settings
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/streetmagic/pos-engine/api"
	"github.com/streetmagic/pos-engine/config"
	"github.com/streetmagic/pos-engine/logger"
	"github.com/streetmagic/pos-engine/loyalty"
	"github.com/streetmagic/pos-engine/menu"
	"github.com/streetmagic/pos-engine/metrics"
	"github.com/streetmagic/pos-engine/orders"
	"github.com/streetmagic/pos-engine/purchases"
	"github.com/streetmagic/pos-engine/store/sqlite"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Load()

	// Flags
	flag.IntVar(&cfg.Port, "port", cfg.Port, "HTTP server port")
	flag.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite database path")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level")
	flag.StringVar(&cfg.Timezone, "tz", cfg.Timezone, "Timezone for day and month windows")
	flag.DurationVar(&cfg.SyncInterval, "sync", cfg.SyncInterval, "Directory sync interval")
	flag.Parse()

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer log.Sync()

	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	cal := loyalty.NewCalendar(loc)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// Initialize store
	store, err := sqlite.New(cfg.DBPath, sqlite.WithFirstOrderNumber(orders.FirstOrderNumber))
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer store.Close()

	dir := loyalty.NewDirectory(store, cal, log, m)
	book := orders.NewBook(store, log, m)
	catalog := menu.NewCatalog(store, log, m)
	register := purchases.NewRegister(store, cal, log, m)

	ctx := context.Background()
	if n, err := book.EnsureIDs(ctx); err != nil {
		log.Warn("order id backfill failed", zap.Error(err))
	} else if n > 0 {
		log.Info("legacy orders numbered", zap.Int("count", n))
	}
	if customers, err := dir.Sync(ctx); err != nil {
		log.Warn("initial directory sync failed", zap.Error(err))
	} else {
		log.Info("directory ready", zap.Int("customers", len(customers)))
	}

	scheduler := api.NewSyncScheduler(dir, log)
	scheduler.Interval = cfg.SyncInterval
	scheduler.Enabled = cfg.SyncEnabled
	scheduler.Start()
	defer scheduler.Stop()

	handler := api.NewHandler(dir, book, catalog, register, cal, log)
	router := api.NewRouter(handler, api.RouterOptions{
		AllowedOrigins: cfg.AllowedOrigins,
		Gatherer:       reg,
		Logger:         log,
		Database:       store,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("server starting",
			zap.Int("port", cfg.Port),
			zap.String("db", cfg.DBPath),
			zap.String("timezone", loc.String()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	case <-quit:
	}

	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info("server stopped")
	return nil
}
