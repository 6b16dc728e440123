// Command runbatch runs one "next batch" of queued lesson jobs and prints the counts.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"lesson-pipeline/internal/application"
	"lesson-pipeline/internal/config"
	"lesson-pipeline/internal/domain"
	"lesson-pipeline/internal/infra/logging"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode")
	limit := flag.Int("limit", 0, "max jobs to process (clamped to worker.max_batch_size; 0 = worker.batch_size)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p, err := application.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("build pipeline")
	}
	defer p.Close()

	res, err := p.Runner.RunBatch(ctx, *limit)
	if err != nil {
		if errors.Is(err, domain.ErrBatchInProgress) {
			logger.Warn().Msg("another batch is running; nothing done")
			return
		}
		logger.Error().Err(err).Msg("run batch")
		p.Close()
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(res)
}
