// Command msgsetd runs the message identifier set service: a record store
// with an HTTP API over the set engine.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/migadu/msgset/config"
	"github.com/migadu/msgset/logger"
	"github.com/migadu/msgset/server/httpapi"
	"github.com/migadu/msgset/store"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to the TOML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logFile, err := logger.Initialize(logger.Options{
		Output: cfg.Logging.Output,
		Format: cfg.Logging.Format,
		Level:  cfg.Logging.Level,
	})
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	if logFile != nil {
		defer logFile.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	records, err := store.Open(ctx, cfg.Store)
	if err != nil {
		logger.Fatal("failed to open record store", "backend", cfg.Store.Backend, "error", err)
	}
	defer records.Close()
	logger.Info("record store ready", "backend", records.Backend())

	if !cfg.HTTPAPI.Start {
		logger.Fatal("nothing to do: http_api.start is false")
	}

	errChan := make(chan error, 1)
	go httpapi.Start(ctx, records, httpapi.ServerOptions{
		Addr:         cfg.HTTPAPI.Addr,
		APIKey:       cfg.HTTPAPI.APIKey,
		AllowedHosts: cfg.HTTPAPI.AllowedHosts,
		TLS:          cfg.HTTPAPI.TLS,
		TLSCertFile:  cfg.HTTPAPI.TLSCertFile,
		TLSKeyFile:   cfg.HTTPAPI.TLSKeyFile,
	}, errChan)

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errChan:
		logger.Fatal("server error", "error", err)
	}
}
