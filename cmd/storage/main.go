// Command storage runs the Storage service: an Elasticsearch-backed
// hot/cold log index with an hourly tier-migration job (spec.md §4.5).
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

	"github.com/mirraman/logpipe/internal/storage"
	"github.com/mirraman/logpipe/internal/storage/esindex"
)

func main() {
	var (
		addr  = flag.String("addr", ":8002", "listen address")
		esURL = flag.String("elasticsearch-url", "http://localhost:9200", "elasticsearch URL")
		debug = flag.Bool("debug", false, "enable debug logging")
	)
	flag.Parse()

	if v := os.Getenv("ELASTICSEARCH_URL"); v != "" {
		*esURL = v
	}

	logLevel := slog.LevelInfo
	if *debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	index, err := esindex.New(*esURL, logger)
	if err != nil {
		logger.Error("failed to connect to elasticsearch", "url", *esURL, "error", err)
		os.Exit(1)
	}

	startupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := index.EnsureIndices(startupCtx); err != nil {
		logger.Error("failed to ensure indices", "error", err)
		os.Exit(1)
	}

	server := storage.NewServer(index, logger)
	migrator := storage.NewMigrator(index)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go migrator.Run(ctx, func(err error) {
		logger.Error("migration pass failed", "error", err)
	})

	httpServer := &http.Server{
		Addr:    *addr,
		Handler: server,
	}

	go func() {
		logger.Info("storage service listening", "addr", *addr, "elasticsearch_url", *esURL)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}
