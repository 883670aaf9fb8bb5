/*
main.go - Application entry point

PURPOSE:
  Starts the billing engine HTTP server. Wires the SQLite gateway, the
  catalog and ledger stores, and the API router, then serves with
  graceful shutdown.

STARTUP SEQUENCE:
  1. Parse flags, load config (YAML + env)
  2. Open the SQLite gateway (schema migrates on open)
  3. Build catalog store, then ledger store on top of it
  4. Configure router, start server
  5. On SIGINT/SIGTERM: drain requests, close the database

FLAGS:
  -config  Path to a YAML config file (optional)
  -addr    Listen address, overrides config
  -db      SQLite database path, overrides config
           Use ":memory:" for an in-memory database

SEE ALSO:
  - config/config.go: Configuration sources and precedence
  - api/server.go: Router configuration
*/
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/warp/billing-engine/api"
	"github.com/warp/billing-engine/catalog"
	"github.com/warp/billing-engine/config"
	"github.com/warp/billing-engine/gateway/sqlite"
	"github.com/warp/billing-engine/ledger"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	addr := flag.String("addr", "", "listen address (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *addr != "" {
		cfg.Addr = *addr
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}

	gw, err := sqlite.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer gw.Close()

	ctx := context.Background()
	cat, err := catalog.New(ctx, gw)
	if err != nil {
		log.Fatalf("Failed to load catalog: %v", err)
	}
	led, err := ledger.New(ctx, gw, cat)
	if err != nil {
		log.Fatalf("Failed to load ledger: %v", err)
	}
	log.Printf("Loaded %d products, %d invoices", cat.Count(), led.Count())

	handler := api.NewHandler(cat, led)
	router := api.NewRouter(handler, cfg.CORSOrigins)

	server := &http.Server{
		Addr:    cfg.Addr,
		Handler: router,
	}

	go func() {
		log.Printf("Billing engine listening on %s (db: %s)", cfg.Addr, cfg.DBPath)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
