/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the club cash and court engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load TOML config (defaults when the file is absent)
  2. Initialize SQLite store in the facility timezone
  3. Seed the court roster
  4. Wire domain services (day lifecycle, occupancy, schedule, reports)
  5. Start the HTTP server with graceful shutdown

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run with defaults
  ./server serve

  # Run with a config file
  ./server serve --config ./club.toml

  # Override port and database path
  ./server serve --port 3000 --db ":memory:"

SEE ALSO:
  - config/config.go: Config file format
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/courtside/club-engine/api"
	"github.com/courtside/club-engine/config"
	"github.com/courtside/club-engine/ledger"
	"github.com/courtside/club-engine/occupancy"
	"github.com/courtside/club-engine/schedule"
	"github.com/courtside/club-engine/store/sqlite"
)

var rootCmd = &cobra.Command{
	Use:   "club-engine",
	Short: "Cash ledger and court engine for a small sports facility",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("config", "", "Path to TOML config file")
	serveCmd.Flags().Int("port", 0, "HTTP server port (overrides config)")
	serveCmd.Flags().String("db", "", "SQLite database path (overrides config)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if port, _ := cmd.Flags().GetInt("port"); port > 0 {
		cfg.Server.Port = port
	}
	if dbPath, _ := cmd.Flags().GetString("db"); dbPath != "" {
		cfg.Database.Path = dbPath
	}

	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	fee, err := cfg.RefereeFee()
	if err != nil {
		return err
	}

	// Initialize store
	store, err := sqlite.New(cfg.Database.Path, loc)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer store.Close()

	// Seed the court roster
	roster := make([]occupancy.Court, 0, len(cfg.Facility.Courts))
	for _, c := range cfg.Facility.Courts {
		roster = append(roster, occupancy.Court{ID: c.ID, Name: c.Name})
	}
	if err := store.EnsureCourts(context.Background(), roster); err != nil {
		return fmt.Errorf("failed to seed courts: %w", err)
	}

	// Wire domain services
	auth := api.NewAuthenticator(cfg.Auth)
	days := ledger.NewController(store, auth, store, loc)
	reports := ledger.NewReports(store, loc)
	courts := occupancy.NewManager(store, days, store)
	sched := schedule.NewService(store, days, courts, fee, store)

	handler := api.NewHandler(days, reports, courts, sched, store, auth)
	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server starting on http://%s", cfg.Server.Addr())
		log.Printf("API available at http://%s/api", cfg.Server.Addr())
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
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("Server stopped")
	return nil
}
