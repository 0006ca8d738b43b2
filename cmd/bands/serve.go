package main

import (
	"context"
	"flag"
	"io"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/banshee-data/amount.report/internal/api"
	"github.com/banshee-data/amount.report/internal/config"
	"github.com/banshee-data/amount.report/internal/db"
)

func handleServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	listen := fs.String("listen", ":8080", "Listen address")
	dbPath := fs.String("db", defaultDBPath, "SQLite database path")
	configPath := fs.String("config", "", "Binning config file (.json, .yaml or .yml)")
	assetsHost := fs.String("assets-host", "", "Serve chart JavaScript from this host instead of the public CDN")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg := config.DefaultBinningConfig()
	if *configPath != "" {
		loaded, err := config.LoadBinningConfig(*configPath)
		if err != nil {
			return err
		}
		cfg = cfg.Merge(loaded)
	}

	database, err := db.NewDB(*dbPath)
	if err != nil {
		return err
	}
	defer database.Close()

	srv := api.NewServer(database, cfg)
	srv.SetAssetsHost(*assetsHost)
	mux := srv.ServeMux()
	if err := database.AttachAdminRoutes(mux); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := &http.Server{
		Addr:    *listen,
		Handler: api.LoggingMiddleware(mux),
	}

	errc := make(chan error, 1)
	go func() {
		log.Printf("listening on %s", *listen)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	log.Println("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
		if err := server.Close(); err != nil {
			log.Printf("HTTP server force close error: %v", err)
		}
	}
	log.Printf("Graceful shutdown complete")
	return nil
}

func handleMigrate(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	dbPath := fs.String("db", defaultDBPath, "SQLite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	return db.RunMigrateCommand(fs.Args(), *dbPath, out)
}
