// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"lesson-pipeline/internal/application"
	"lesson-pipeline/internal/config"
	"lesson-pipeline/internal/infra/api"
	"lesson-pipeline/internal/infra/api/apiv1"
	pg "lesson-pipeline/internal/infra/db/postgres"
	"lesson-pipeline/internal/infra/logging"
	"lesson-pipeline/internal/infra/metrics"
	"lesson-pipeline/internal/infra/sched"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (noop generator without provider keys)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("[DEV MODE] Enabled")
	}

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ---- Pipeline (Postgres, Redis, AI, runner) ----
	p, err := application.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("build pipeline")
	}
	defer p.Close()

	// ---- Operator API ----
	auth, err := api.NewAuthManager(cfg.API.JWTSecret, cfg.API.TokenTTL)
	if err != nil {
		logger.Fatal().Err(err).Msg("api auth: set api.jwt_secret or API_JWT_SECRET")
	}
	v1 := apiv1.NewServer(p.Runner, p.Jobs, logger)
	router := api.NewRouter(logger, 0, func(r chi.Router) {
		apiv1.RegisterAPIV1(r, v1, auth.RequireRole(logger, api.RoleOperator, api.RoleAdmin))
	})
	server := api.NewServer(cfg.API.Port, router, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return server.Run(gctx) })
	g.Go(func() error {
		pg.ReportPoolStats(gctx, p.Pool, 15*time.Second, logger)
		return nil
	})

	// ---- Periodic batch worker ----
	if cfg.Worker.Enabled {
		bw := sched.NewBatchWorker(cfg.Worker.PollInterval, cfg.Worker.BatchSize, p.Runner, logger)
		g.Go(func() error {
			if err := bw.Run(gctx); err != nil && gctx.Err() == nil {
				return err
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("service stopped with error")
		return
	}
	logger.Info().Msg("shutdown complete")
}
