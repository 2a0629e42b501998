/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the storefront ledger-core server: the payment
  reconciliation engine and the loyalty coin ledger behind one HTTP API.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Load TOML configuration (flags win over the file)
  3. Initialize SQLite database and the two domain stores
  4. Build the payment engine and coin ledger
  5. Configure HTTP router
  6. Start the background reconciliation sweep
  7. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  TOML config file path (default: ledger.toml, optional)
  -port    HTTP server port (overrides config)
  -db      SQLite database path (overrides config)
           Use ":memory:" for an in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (configurable timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/ledger.db"

  # Run with in-memory database
  ./server -db=":memory:"

  # Run with a config file
  ./server -config=./ledger.toml

SEE ALSO:
  - api/server.go: Router configuration
  - config/config.go: TOML configuration
  - store/sqlite: Database implementation
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

	"github.com/storefront/ledger-core/api"
	"github.com/storefront/ledger-core/coins"
	"github.com/storefront/ledger-core/config"
	"github.com/storefront/ledger-core/payments"
	"github.com/storefront/ledger-core/store/sqlite"
)

func main() {
	// Flags
	configPath := flag.String("config", "ledger.toml", "TOML config file path")
	port := flag.Int("port", 0, "HTTP server port (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *dbPath != "" {
		cfg.Server.DBPath = *dbPath
	}

	settings, err := cfg.LoyaltySettings()
	if err != nil {
		log.Fatalf("Invalid loyalty settings: %v", err)
	}

	// Initialize storage
	db, err := sqlite.Open(cfg.Server.DBPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	// Build the two engines
	engine := payments.NewEngine(sqlite.NewPaymentStore(db))
	coinLedger := coins.NewLedger(sqlite.NewCoinStore(db), settings)

	// Create router
	handler := api.NewHandler(engine, coinLedger)
	router := api.NewRouter(handler)

	// Background reconciliation sweep
	sweeper := api.NewReconciliationSweeper(handler)
	if cfg.Server.ReconcileInterval > 0 {
		sweeper.Interval = time.Duration(cfg.Server.ReconcileInterval) * time.Minute
	} else {
		sweeper.Enabled = false
	}
	sweeper.Start()
	defer sweeper.Stop()

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Ledger core starting on http://localhost:%d", cfg.Server.Port)
		log.Printf("API available at http://localhost:%d/api", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	timeout := time.Duration(cfg.Server.ShutdownTimeout) * time.Second
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
