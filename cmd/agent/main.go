// Command agent runs a standalone log agent process for testing and
// operator tooling. In production the Agent type is typically embedded
// directly in the application process; this binary exists to exercise the
// batching/retry/spill pipeline against a live Ingestion service.
//
// # Usage
//
//	agent --ingestion http://localhost:8001 --app-name checkout-service
//
// Configuration can also come from --config (YAML) or LOGPIPE_* env vars.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mirraman/logpipe/internal/agent"
	"github.com/mirraman/logpipe/internal/agentconfig"
	"github.com/mirraman/logpipe/pkg/model"
)

func main() {
	var (
		configFile = flag.String("config", "", "path to config file")
		ingestion  = flag.String("ingestion", "", "ingestion service URL")
		appName    = flag.String("app-name", "", "application name tagged on every log entry")
		batchSize  = flag.Int("batch-size", 0, "size-triggered drain threshold")
		debug      = flag.Bool("debug", false, "enable debug logging")
	)
	flag.Parse()

	logLevel := slog.LevelInfo
	if *debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	var cfg *agentconfig.Config
	if *configFile != "" {
		loaded, err := agentconfig.LoadFromFile(*configFile)
		if err != nil {
			logger.Error("failed to load config file", "error", err)
			os.Exit(1)
		}
		cfg = loaded
	} else {
		cfg = agentconfig.DefaultConfig()
	}

	cfg.ApplyEnvOverrides()
	if *ingestion != "" {
		cfg.Ingestion.URL = *ingestion
	}
	if *appName != "" {
		cfg.Agent.AppName = *appName
	}
	if *batchSize > 0 {
		cfg.Batching.BatchSize = *batchSize
	}

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	a := agent.New(agent.Config{
		IngestionURL:  cfg.Ingestion.URL,
		BatchSize:     cfg.Batching.BatchSize,
		FlushInterval: cfg.Batching.FlushInterval,
		SpillDir:      cfg.Batching.SpillDir,
		Logger:        logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.StartFlushLoop(ctx)

	logger.Info("agent reading log lines from stdin", "ingestion_url", cfg.Ingestion.URL, "app_name", cfg.Agent.AppName)

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		a.Log(model.NewLogEntry(cfg.Agent.AppName, model.LevelInfo, line, nil))
	}

	<-ctx.Done()
	a.Flush(context.Background())
	fmt.Fprintln(os.Stderr, "agent shutting down")
}
