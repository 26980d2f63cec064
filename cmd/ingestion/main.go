// Command ingestion runs the Ingestion service: a per-app quota gate and
// redaction forwarder sitting between Agents and Storage (spec.md §4.3).
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mirraman/logpipe/internal/ingestion"
)

func main() {
	var (
		addr       = flag.String("addr", ":8001", "listen address")
		configURL  = flag.String("config-url", "http://localhost:8003", "config service URL")
		storageURL = flag.String("storage-url", "http://localhost:8002", "storage service URL")
		debug      = flag.Bool("debug", false, "enable debug logging")
	)
	flag.Parse()

	logLevel := slog.LevelInfo
	if *debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	server := ingestion.NewServer(ingestion.Config{
		ConfigURL:  *configURL,
		StorageURL: *storageURL,
		Logger:     logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server.StartQuotaRefresh(ctx)

	httpServer := &http.Server{
		Addr:    *addr,
		Handler: server,
	}

	go func() {
		logger.Info("ingestion service listening", "addr", *addr, "config_url", *configURL, "storage_url", *storageURL)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}
