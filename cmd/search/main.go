// Command search runs the Search service: a thin query facade over
// Storage (spec.md §4.6).
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

	"github.com/mirraman/logpipe/internal/search"
	"github.com/mirraman/logpipe/internal/search/cache"
)

func main() {
	var (
		addr       = flag.String("addr", ":8004", "listen address")
		storageURL = flag.String("storage-url", "http://localhost:8002", "storage service URL")
		redisURL   = flag.String("redis-url", "", "optional redis URL for result caching")
		cacheTTL   = flag.Duration("cache-ttl", 10*time.Second, "result cache TTL, if redis-url is set")
		debug      = flag.Bool("debug", false, "enable debug logging")
	)
	flag.Parse()

	logLevel := slog.LevelInfo
	if *debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	var resultCache *cache.Cache
	if *redisURL != "" {
		c, err := cache.New(*redisURL, *cacheTTL, logger)
		if err != nil {
			logger.Error("failed to connect to redis, continuing without result caching", "error", err)
		} else {
			resultCache = c
		}
	}

	server := search.NewServer(search.Config{
		StorageURL: *storageURL,
		Logger:     logger,
		Cache:      resultCache,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpServer := &http.Server{
		Addr:    *addr,
		Handler: server,
	}

	go func() {
		logger.Info("search service listening", "addr", *addr, "storage_url", *storageURL)
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
