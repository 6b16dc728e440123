package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"

	"lesson-pipeline/internal/config"
	"lesson-pipeline/internal/domain/ports/adapter"
	"lesson-pipeline/internal/domain/ports/repository"
	aiAdapters "lesson-pipeline/internal/infra/adapters/ai"
	pg "lesson-pipeline/internal/infra/db/postgres"
	red "lesson-pipeline/internal/infra/redis"
	"lesson-pipeline/internal/infra/sched"
	"lesson-pipeline/internal/infra/worker"
	"lesson-pipeline/internal/usecase"
)

// Pipeline holds the wired lesson generation stack shared by the server and
// the one-shot CLI.
type Pipeline struct {
	Pool      *pgxpool.Pool
	Jobs      repository.GenerationJobRepository
	Profiles  repository.PromptProfileRepository
	Specs     repository.ImageSpecRepository
	Curricula repository.CurriculumRepository

	// Runner is the exclusive batch runner; it takes the batch lock when Redis is configured.
	Runner *sched.ExclusiveBatchRunner

	closers []func()
}

func (p *Pipeline) Close() {
	for i := len(p.closers) - 1; i >= 0; i-- {
		p.closers[i]()
	}
}

// Build connects the stores and wires repositories, generation client and runner.
func Build(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*Pipeline, error) {
	pool, err := pg.NewPgxPool(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	p := &Pipeline{Pool: pool, closers: []func(){pool.Close}}

	var (
		profiles repository.PromptProfileRepository = pg.NewPromptProfileRepo(pool)
		edition  adapter.Locker
		batch    adapter.Locker
	)
	if cfg.Redis.URL != "" {
		rc, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("redis: %w", err)
		}
		p.closers = append(p.closers, func() { _ = rc.Close() })
		profiles = pg.NewPromptProfileCacheDecorator(profiles, rc, cfg.Redis.TTL, logger)
		edition = red.NewLocker(rc)
		batch = red.NewLocker(rc).WithRetry(1, 0)
	} else {
		logger.Warn().Msg("redis not configured; profile cache and cross-process locks disabled")
	}

	client, err := NewGenerationClient(ctx, cfg.AI, cfg.Runtime.Dev, logger)
	if err != nil {
		p.Close()
		return nil, err
	}

	p.Jobs = pg.NewGenerationJobRepo(pool)
	p.Profiles = profiles
	p.Specs = pg.NewImageSpecRepo(pool)
	p.Curricula = pg.NewCurriculumRepo(pool)

	generator := usecase.NewLessonGenerator(client, usecase.NewLessonValidator(), usecase.GenerationDefaults{
		Model:           cfg.AI.DefaultModel,
		Temperature:     cfg.AI.DefaultTemperature,
		MaxOutputTokens: cfg.AI.MaxOutputTokens,
	}, logger)
	writer := usecase.NewLessonWriter(
		pg.NewLessonRepo(pool),
		pg.NewAssetJobRepo(pool),
		p.Curricula,
		pg.NewTxManager(pool),
		cfg.Worker.ContentChunkSize,
	)
	runner := worker.NewLessonJobRunner(p.Jobs, p.Profiles, p.Specs, generator, writer, edition, worker.RunnerConfig{
		DefaultBatchSize: cfg.Worker.BatchSize,
		MaxBatchSize:     cfg.Worker.MaxBatchSize,
		Concurrency:      cfg.Worker.Concurrency,
		JobTimeout:       cfg.Worker.JobTimeout,
		EditionLockTTL:   cfg.Worker.EditionLockTTL,
	}, logger)
	p.Runner = sched.NewExclusiveBatchRunner(runner, batch, BatchLockTTL(cfg.Worker), logger)
	return p, nil
}

// BatchLockTTL covers the worst case of a full batch where every job runs to its deadline.
func BatchLockTTL(w config.WorkerConfig) time.Duration {
	conc := w.Concurrency
	if conc <= 0 {
		conc = 1
	}
	rounds := (w.MaxBatchSize + conc - 1) / conc
	if rounds < 1 {
		rounds = 1
	}
	return time.Duration(rounds)*w.JobTimeout + time.Minute
}

// NewGenerationClient builds the provider stack: routing across configured
// providers, then the prompt token budget, then the concurrency limit. In dev
// mode without provider keys it falls back to the noop generator.
func NewGenerationClient(ctx context.Context, cfg config.AIConfig, dev bool, logger *zerolog.Logger) (adapter.GenerationClient, error) {
	providers := map[string]adapter.GenerationClient{}
	defaultProvider := ""

	if cfg.OpenAIKey != "" {
		oa, err := aiAdapters.NewOpenAIAdapter(cfg.OpenAIKey, cfg.OpenAIBaseURL, cfg.DefaultModel, cfg.RequestTimeout)
		if err != nil {
			return nil, fmt.Errorf("openai adapter: %w", err)
		}
		providers[aiAdapters.ProviderOpenAI] = oa
		defaultProvider = aiAdapters.ProviderOpenAI
	}
	if cfg.GeminiKey != "" {
		gm, err := aiAdapters.NewGeminiAdapter(ctx, cfg.GeminiKey, geminiDefault(cfg.DefaultModel), cfg.RequestTimeout)
		if err != nil {
			return nil, fmt.Errorf("gemini adapter: %w", err)
		}
		providers[aiAdapters.ProviderGemini] = gm
		if defaultProvider == "" {
			defaultProvider = aiAdapters.ProviderGemini
		}
	}

	var client adapter.GenerationClient
	switch {
	case len(providers) > 0:
		client = aiAdapters.NewMultiAIAdapter(defaultProvider, providers, nil)
		logger.Info().Str("default_provider", defaultProvider).Int("providers", len(providers)).Msg("generation client ready")
	case dev:
		logger.Warn().Msg("[DEV MODE] no AI provider configured; using noop generator")
		client = aiAdapters.NewNoopAIAdapter(logger)
	default:
		return nil, errors.New("no AI provider configured: set ai.openai_key or ai.gemini_key")
	}

	client = aiAdapters.NewTokenBudgetAI(client, aiAdapters.NewTiktokenCounter(), cfg.MaxPromptTokens, logger)
	return aiAdapters.NewLimitedAI(client, cfg.ConcurrentLimit), nil
}

// geminiDefault keeps an OpenAI default model from leaking into Gemini calls.
func geminiDefault(model string) string {
	if len(model) >= 6 && model[:6] == "gemini" {
		return model
	}
	return ""
}
