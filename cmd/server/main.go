/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the contract engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env, app.env, environment), apply flag overrides
  2. Build the logger
  3. Open the store (sqlite, postgres or memory)
  4. Load the engine policy file
  5. Wire resolvers and services, create the API handler
  6. Configure HTTP router
  7. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (overrides HTTP_PORT)
  -db      SQLite database path (overrides SQLITE_PATH)
           Use ":memory:" for in-memory database

ENVIRONMENT:
  APP_ENV, LOG_LEVEL, HTTP_HOST, HTTP_PORT, STORE_DRIVER, SQLITE_PATH,
  DB_DSN, ENGINE_POLICY_FILE. See config/config.go.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/contracts.db"

  # Run against Postgres
  STORE_DRIVER=postgres DB_DSN=postgres://localhost/contracts ./server

  # Run with a legal policy file
  ENGINE_POLICY_FILE=./policy.json ./server -port=3000

SEE ALSO:
  - config/config.go: Configuration
  - api/server.go: Router configuration
  - factory/policy.go: Engine policy file
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

	"github.com/rs/zerolog"

	"github.com/warp/contract-engine/api"
	"github.com/warp/contract-engine/benefit"
	"github.com/warp/contract-engine/compensation"
	"github.com/warp/contract-engine/config"
	"github.com/warp/contract-engine/contract"
	"github.com/warp/contract-engine/factory"
	"github.com/warp/contract-engine/fixedterm"
	"github.com/warp/contract-engine/logger"
	"github.com/warp/contract-engine/metrics"
	"github.com/warp/contract-engine/params"
	"github.com/warp/contract-engine/store"
	"github.com/warp/contract-engine/store/memory"
	"github.com/warp/contract-engine/store/postgres"
	"github.com/warp/contract-engine/store/sqlite"
)

func main() {
	// Flags
	port := flag.Int("port", 0, "HTTP server port (overrides HTTP_PORT)")
	dbPath := flag.String("db", "", "SQLite database path (overrides SQLITE_PATH)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	if *port > 0 {
		cfg.HTTP.Port = *port
	}
	if *dbPath != "" {
		cfg.Store.SQLitePath = *dbPath
	}

	log := logger.New(cfg.Environment, cfg.LogLevel)

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server stopped with error")
	}
	log.Info().Msg("server stopped")
}

func run(cfg *config.Config, log zerolog.Logger) error {
	ctx := context.Background()

	// Initialize store
	backend, closeStore, err := openStore(ctx, cfg.Store)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer func() {
		if err := closeStore(); err != nil {
			log.Error().Err(err).Msg("failed to close store")
		}
	}()
	log.Info().Str("driver", cfg.Store.Driver).Msg("store ready")

	policy, err := factory.NewPolicyFactory().LoadFile(cfg.PolicyFile)
	if err != nil {
		return fmt.Errorf("failed to load engine policy: %w", err)
	}
	log.Info().Str("policy", policy.ID).Str("max_years", policy.Tenure.MaxYears.String()).Msg("engine policy loaded")

	// Wire services
	m := metrics.New()
	paramResolver := params.NewResolver(backend, policy.ParameterDefaults, backend, log, m)
	benefitResolver := benefit.NewResolver(backend, backend, log, m)
	contracts := contract.NewService(contract.Config{
		Store:      backend,
		Periods:    fixedterm.NewService(backend, policy.Tenure, backend, log),
		Benefits:   benefitResolver,
		Calculator: compensation.NewCalculator(paramResolver),
		Thresholds: policy.Validity,
		Audit:      backend,
		Logger:     log,
		Metrics:    m,
	})

	handler := api.NewHandler(api.HandlerConfig{
		Contracts: contracts,
		Benefits:  benefitResolver,
		Params:    paramResolver,
		Audit:     backend,
		Policy:    policy,
		Logger:    log,
	})

	// Create router
	router := api.NewRouter(handler, api.RouterOptions{Logger: log})

	// Create server
	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", server.Addr).Str("env", cfg.Environment).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-quit:
	}

	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}

// openStore opens the configured backend and returns its closer.
func openStore(ctx context.Context, cfg config.StoreConfig) (store.Backend, func() error, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		s, err := postgres.Open(ctx, cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case config.DriverMemory:
		return memory.New(), func() error { return nil }, nil
	default:
		s, err := sqlite.New(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	}
}
