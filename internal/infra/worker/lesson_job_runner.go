package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"lesson-pipeline/internal/domain"
	"lesson-pipeline/internal/domain/model"
	"lesson-pipeline/internal/domain/ports/adapter"
	"lesson-pipeline/internal/domain/ports/repository"
	"lesson-pipeline/internal/infra/logging"
	"lesson-pipeline/internal/infra/metrics"
	"lesson-pipeline/internal/usecase"
)

// BatchResult is the aggregate outcome of one RunBatch call.
type BatchResult struct {
	BatchID     string `json:"batch_id"`
	Processed   int    `json:"processed"`
	OKCount     int    `json:"ok_count"`
	FailedCount int    `json:"failed_count"`
}

type RunnerConfig struct {
	DefaultBatchSize int
	MaxBatchSize     int
	Concurrency      int
	JobTimeout       time.Duration
	FinalizeTimeout  time.Duration
	EditionLockTTL   time.Duration
}

func (c RunnerConfig) withDefaults() RunnerConfig {
	if c.DefaultBatchSize <= 0 {
		c.DefaultBatchSize = 10
	}
	if c.MaxBatchSize <= 0 {
		c.MaxBatchSize = 50
	}
	if c.DefaultBatchSize > c.MaxBatchSize {
		c.DefaultBatchSize = c.MaxBatchSize
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 1
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = 5 * time.Minute
	}
	if c.FinalizeTimeout <= 0 {
		c.FinalizeTimeout = 10 * time.Second
	}
	if c.EditionLockTTL <= 0 {
		c.EditionLockTTL = 2 * time.Minute
	}
	return c
}

// LessonJobRunner claims queued generation jobs and drives each one through
// generation, normalisation and persistence. A job's failure is recorded on
// the job and never aborts its siblings.
type LessonJobRunner struct {
	jobs      repository.GenerationJobRepository
	profiles  repository.PromptProfileRepository
	specs     repository.ImageSpecRepository
	generator usecase.LessonGenerator
	writer    usecase.LessonWriter
	locker    adapter.Locker
	cfg       RunnerConfig
	log       *zerolog.Logger
	now       func() time.Time
}

// NewLessonJobRunner wires the runner. locker may be nil; edition writes are
// then not serialised across processes.
func NewLessonJobRunner(
	jobs repository.GenerationJobRepository,
	profiles repository.PromptProfileRepository,
	specs repository.ImageSpecRepository,
	generator usecase.LessonGenerator,
	writer usecase.LessonWriter,
	locker adapter.Locker,
	cfg RunnerConfig,
	logger *zerolog.Logger,
) *LessonJobRunner {
	l := logger.With().Str("component", "LessonJobRunner").Logger()
	return &LessonJobRunner{
		jobs:      jobs,
		profiles:  profiles,
		specs:     specs,
		generator: generator,
		writer:    writer,
		locker:    locker,
		cfg:       cfg.withDefaults(),
		log:       &l,
		now:       time.Now,
	}
}

// ClampLimit maps a requested batch size into [1, MaxBatchSize]; non-positive
// requests get the default size.
func (r *LessonJobRunner) ClampLimit(limit int) int {
	if limit <= 0 {
		return r.cfg.DefaultBatchSize
	}
	if limit > r.cfg.MaxBatchSize {
		return r.cfg.MaxBatchSize
	}
	return limit
}

type jobOutcome int

const (
	outcomeSkipped jobOutcome = iota
	outcomeOK
	outcomeFailed
)

// RunBatch processes the oldest queued jobs, up to limit. Only failures to
// list the queue are returned as errors.
func (r *LessonJobRunner) RunBatch(ctx context.Context, limit int) (BatchResult, error) {
	res := BatchResult{BatchID: ulid.Make().String()}
	limit = r.ClampLimit(limit)
	start := time.Now()
	ctx = logging.WithBatchID(ctx, res.BatchID)
	log := logging.With(ctx, r.log)

	queued, err := r.jobs.ListQueued(ctx, limit)
	if err != nil {
		return res, fmt.Errorf("list queued jobs: %w", err)
	}
	log.Info().Int("limit", limit).Int("queued", len(queued)).Msg("batch started")

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(r.cfg.Concurrency)
	for _, job := range queued {
		if ctx.Err() != nil {
			log.Warn().Err(ctx.Err()).Msg("batch interrupted; leaving remaining jobs queued")
			break
		}
		jobID := job.ID
		g.Go(func() error {
			out := r.runOne(ctx, jobID)
			mu.Lock()
			defer mu.Unlock()
			switch out {
			case outcomeOK:
				res.Processed++
				res.OKCount++
			case outcomeFailed:
				res.Processed++
				res.FailedCount++
			}
			return nil
		})
	}
	_ = g.Wait()

	metrics.ObserveLessonBatch(time.Since(start), res.Processed, res.OKCount, res.FailedCount)
	log.Info().
		Int("processed", res.Processed).
		Int("ok_count", res.OKCount).
		Int("failed_count", res.FailedCount).
		Dur("duration", time.Since(start)).
		Msg("batch finished")
	return res, nil
}

type processResult struct {
	editionID string
	assetJobs int
}

func (r *LessonJobRunner) runOne(ctx context.Context, jobID string) jobOutcome {
	// A cancelled caller stops new claims; claimed jobs run to their own deadline.
	if ctx.Err() != nil {
		return outcomeSkipped
	}
	ctx = logging.WithJobID(context.WithoutCancel(ctx), jobID)
	job, err := r.jobs.Claim(ctx, jobID)
	if err != nil {
		if !errors.Is(err, domain.ErrJobNotClaimable) {
			logging.With(ctx, r.log).Error().Err(err).Msg("claim failed")
		}
		return outcomeSkipped
	}
	log := logging.With(ctx, r.log).With().Int("attempt", job.Attempts).Logger()
	log.Info().Str("subject", job.Subject).Str("topic", job.Topic).Msg("job claimed")
	start := time.Now()

	jobCtx, cancel := context.WithTimeout(ctx, r.cfg.JobTimeout)
	pr, err := r.safeProcess(jobCtx, job, &log)
	if err != nil && errors.Is(jobCtx.Err(), context.DeadlineExceeded) {
		err = fmt.Errorf("%w after %s: %v", domain.ErrJobTimeout, r.cfg.JobTimeout, err)
	}
	cancel()

	if err != nil {
		kind, details := classifyFailure(err)
		job.MarkFailed(kind, err.Error(), details, r.now())
		log.Error().Err(err).Str("failure_kind", string(kind)).Int("validation_errors", len(details)).Msg("job failed")
	} else {
		job.MarkCompleted(pr.editionID, pr.assetJobs, r.now())
	}

	finCtx, finCancel := context.WithTimeout(context.Background(), r.cfg.FinalizeTimeout)
	defer finCancel()
	if ferr := r.jobs.Finish(finCtx, nil, job); ferr != nil {
		log.Error().Err(ferr).Str("status", string(job.Status)).Msg("could not record job outcome")
		metrics.IncLessonJob(string(model.GenerationJobFailed), string(model.FailurePersistence))
		return outcomeFailed
	}

	metrics.IncLessonJob(string(job.Status), string(job.FailureKind))
	metrics.ObserveLessonJobDuration(string(job.Status), time.Since(start))
	if job.Status == model.GenerationJobCompleted {
		log.Info().
			Str("edition_id", job.EditionID).
			Str("image_status", string(job.ImageStatus)).
			Dur("duration", time.Since(start)).
			Msg("job completed")
		return outcomeOK
	}
	return outcomeFailed
}

// safeProcess converts a panic in the pipeline into a job failure.
func (r *LessonJobRunner) safeProcess(ctx context.Context, job *model.GenerationJob, log *zerolog.Logger) (pr processResult, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Interface("panic", rec).Bytes("stack", debug.Stack()).Msg("job pipeline panic")
			err = fmt.Errorf("internal error: %v", rec)
		}
	}()
	return r.process(ctx, job, log)
}

func (r *LessonJobRunner) process(ctx context.Context, job *model.GenerationJob, log *zerolog.Logger) (processResult, error) {
	profile, err := r.profiles.FindByID(ctx, nil, job.PromptProfileID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return processResult{}, fmt.Errorf("%w: %s", domain.ErrPromptProfileMissing, job.PromptProfileID)
		}
		return processResult{}, fmt.Errorf("load prompt profile: %w", err)
	}

	gen, err := r.generator.Generate(ctx, job, profile)
	if gen != nil {
		metrics.ObserveRepair(gen.Repaired, err == nil)
	}
	if err != nil {
		return processResult{}, err
	}
	if gen.Repaired {
		log.Info().Int("generation_calls", gen.GenerationCalls).Msg("lesson repaired")
	}

	acts := usecase.ExtractActivities(gen.Wrapper)

	editionID := usecase.EditionIDFor(usecase.TemplateIDFor(job), job.Locale)
	unlock, err := r.lockEdition(ctx, editionID)
	if err != nil {
		return processResult{}, err
	}
	defer unlock()

	persisted, err := r.writer.PersistLesson(ctx, job, gen.Wrapper, acts)
	if err != nil {
		return processResult{}, err
	}
	metrics.AddContentItems(len(persisted.Items))

	firstItemID := ""
	if len(persisted.Items) > 0 {
		firstItemID = persisted.Items[0].ID
	}
	reqs, src, err := usecase.ExtractAssetRequests(job, gen.Wrapper, r.specLookup(ctx, job), firstItemID)
	if err != nil {
		return processResult{}, err
	}
	n, err := r.writer.InsertAssetJobs(ctx, job, persisted.Edition.ID, reqs)
	metrics.AddAssetJobs(string(src), n)
	if err != nil {
		return processResult{}, err
	}

	log.Debug().
		Str("wrapper_kind", gen.Wrapper.Kind.String()).
		Int("content_items", len(persisted.Items)).
		Str("asset_source", string(src)).
		Int("asset_jobs", n).
		Msg("lesson persisted")
	return processResult{editionID: persisted.Edition.ID, assetJobs: n}, nil
}

func (r *LessonJobRunner) specLookup(ctx context.Context, job *model.GenerationJob) usecase.SpecLookup {
	return func(imageType string) (*model.ImageSpec, error) {
		spec, err := r.specs.Find(ctx, nil, job.ImagePackID, imageType)
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		return spec, err
	}
}

func (r *LessonJobRunner) lockEdition(ctx context.Context, editionID string) (func(), error) {
	if r.locker == nil {
		return func() {}, nil
	}
	key := "lock:lesson_edition:" + editionID
	token, err := r.locker.TryLock(ctx, key, r.cfg.EditionLockTTL)
	if err != nil {
		return nil, fmt.Errorf("lock edition %s: %w", editionID, err)
	}
	return func() {
		unlockCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := r.locker.Unlock(unlockCtx, key, token); err != nil {
			r.log.Warn().Err(err).Str("edition_id", editionID).Msg("edition unlock failed")
		}
	}, nil
}

// classifyFailure maps a pipeline error onto the failure taxonomy.
func classifyFailure(err error) (model.FailureKind, []domain.ErrorDetail) {
	var valErr *domain.ValidationFailedError
	var genErr *domain.GenerationError
	var persistErr *domain.PersistenceError
	switch {
	case errors.As(err, &valErr):
		return model.FailureValidation, valErr.Errors
	case errors.Is(err, domain.ErrJobTimeout), errors.Is(err, context.DeadlineExceeded):
		return model.FailureTimeout, nil
	case errors.Is(err, domain.ErrCurriculumNotResolved), errors.Is(err, domain.ErrPromptProfileMissing):
		return model.FailureResolution, nil
	case errors.As(err, &genErr), errors.Is(err, domain.ErrPromptTooLarge):
		return model.FailureTransport, nil
	case errors.As(err, &persistErr), errors.Is(err, domain.ErrLockNotAcquired):
		return model.FailurePersistence, nil
	default:
		return model.FailureInternal, nil
	}
}
