/*
main.go - HTTP server entry point

PURPOSE:
  Starts the reconciliation engine's HTTP surface. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Load the JSON configuration (store binding, holidays)
  3. Open the configured store (workbook or SQLite)
  4. Create API handler with dependencies
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  JSON configuration path (default: config.json)
  -listen  Listen address, overrides the config (e.g. ":3000")

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close the store
  4. Exit

EXAMPLES:
  # Run against the operator's workbook
  ./server -config=./config.json

  # Override the listen address
  ./server -config=./config.json -listen=:3000

SEE ALSO:
  - api/server.go: Router configuration
  - config/config.go: Configuration schema
  - cmd/reconcile/main.go: The interactive CLI over the same engine
*/
package main

import (
	"context"
	"flag"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yelush19/Litay-Panda-miluim/api"
	"github.com/yelush19/Litay-Panda-miluim/config"
)

func main() {
	// Flags
	configPath := flag.String("config", "config.json", "JSON configuration path")
	listen := flag.String("listen", "", "listen address, overrides the config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *listen != "" {
		cfg.Listen = *listen
	}

	// Initialize store
	store, err := cfg.OpenStore()
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer closeStore(store)

	// Initialize handler and router
	handler := api.NewHandler(store, cfg.Calendar())
	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         cfg.Listen,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server starting on %s", cfg.Listen)
		log.Printf("API available under %s/api", cfg.Listen)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}

// closeStore closes stores that hold OS resources (SQLite); the workbook
// store has nothing to close.
func closeStore(s any) {
	if c, ok := s.(io.Closer); ok {
		c.Close()
	}
}
