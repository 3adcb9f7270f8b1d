/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the master-sheet admin backend. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse environment configuration, then command-line flag overrides
  2. Initialize the structured logger
  3. Initialize the SQLite store
  4. Build the reconciliation runner (resolver + CSV upload source)
  5. Configure the HTTP router
  6. Start the server with graceful shutdown

CONFIGURATION:
  PORT          HTTP server port (default: 8080)
  DB_PATH       SQLite database path (default: mastersheet.db,
                ":memory:" for in-memory)
  UPLOAD_DIR    Directory holding uploaded insurer files (default: uploads)
  DEBUG         Verbose logging when true

  Flags -port, -db, -uploads and -debug override the environment.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close the database connection
  4. Flush the logger and exit

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/HeshMedia/insurezeal-sub006/api"
	"github.com/HeshMedia/insurezeal-sub006/recon"
	"github.com/HeshMedia/insurezeal-sub006/store/sqlite"
	"github.com/HeshMedia/insurezeal-sub006/upload"
)

// Config is the server configuration, environment first.
type Config struct {
	Port      int    `env:"PORT" envDefault:"8080"`
	DBPath    string `env:"DB_PATH" envDefault:"mastersheet.db"`
	UploadDir string `env:"UPLOAD_DIR" envDefault:"uploads"`
	Debug     bool   `env:"DEBUG" envDefault:"false"`
}

func main() {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("Failed to parse environment: %v", err)
	}

	// Flags override the environment.
	flag.IntVar(&cfg.Port, "port", cfg.Port, "HTTP server port")
	flag.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite database path")
	flag.StringVar(&cfg.UploadDir, "uploads", cfg.UploadDir, "uploaded files directory")
	flag.BoolVar(&cfg.Debug, "debug", cfg.Debug, "verbose logging")
	flag.Parse()

	// Logger
	logCfg := zap.NewProductionConfig()
	if cfg.Debug {
		logCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	logger, err := logCfg.Build()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// Store
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}
	defer store.Close()

	// Reconciliation runner
	runner := recon.NewRunner(
		recon.NewResolver(store),
		upload.NewCSVSource(cfg.UploadDir),
		logger,
	)

	// Handler and router
	handler := api.NewHandler(store, runner, logger)
	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("server starting",
			zap.Int("port", cfg.Port),
			zap.String("db", cfg.DBPath),
			zap.String("uploads", cfg.UploadDir))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
