package sched

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"lesson-pipeline/internal/domain"
	"lesson-pipeline/internal/domain/ports/adapter"
	"lesson-pipeline/internal/infra/worker"
)

// BatchLockKey serialises batches across scheduler instances.
const BatchLockKey = "lock:lesson_batch"

// BatchRunner runs one "next batch" of queued generation jobs.
type BatchRunner interface {
	RunBatch(ctx context.Context, limit int) (worker.BatchResult, error)
}

var _ BatchRunner = (*ExclusiveBatchRunner)(nil)

// ExclusiveBatchRunner holds the batch lock for the duration of a batch.
// Without a locker it runs the inner batch directly.
type ExclusiveBatchRunner struct {
	inner  BatchRunner
	locker adapter.Locker
	ttl    time.Duration
	log    *zerolog.Logger
}

func NewExclusiveBatchRunner(inner BatchRunner, locker adapter.Locker, ttl time.Duration, logger *zerolog.Logger) *ExclusiveBatchRunner {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	l := logger.With().Str("component", "ExclusiveBatchRunner").Logger()
	return &ExclusiveBatchRunner{inner: inner, locker: locker, ttl: ttl, log: &l}
}

// RunBatch returns domain.ErrBatchInProgress when another instance holds the lock.
func (e *ExclusiveBatchRunner) RunBatch(ctx context.Context, limit int) (worker.BatchResult, error) {
	if e.locker == nil {
		return e.inner.RunBatch(ctx, limit)
	}
	token, err := e.locker.TryLock(ctx, BatchLockKey, e.ttl)
	if err != nil {
		if errors.Is(err, domain.ErrLockNotAcquired) {
			return worker.BatchResult{}, domain.ErrBatchInProgress
		}
		return worker.BatchResult{}, err
	}
	defer func() {
		unlockCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := e.locker.Unlock(unlockCtx, BatchLockKey, token); err != nil {
			e.log.Warn().Err(err).Msg("failed to release batch lock")
		}
	}()
	return e.inner.RunBatch(ctx, limit)
}

// BatchWorker periodically runs a batch of queued lesson jobs.
type BatchWorker struct {
	interval  time.Duration
	batchSize int
	runner    BatchRunner
	log       *zerolog.Logger
}

func NewBatchWorker(interval time.Duration, batchSize int, runner BatchRunner, logger *zerolog.Logger) *BatchWorker {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	compLog := logger.With().Str("component", "BatchWorker").Logger()
	return &BatchWorker{
		interval:  interval,
		batchSize: batchSize,
		runner:    runner,
		log:       &compLog,
	}
}

func (w *BatchWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("Starting batch worker")
	// Run once on startup, then on every tick
	w.tick(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping batch worker")
			return ctx.Err()
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *BatchWorker) tick(ctx context.Context) {
	res, err := w.runner.RunBatch(ctx, w.batchSize)
	switch {
	case errors.Is(err, domain.ErrBatchInProgress):
		w.log.Debug().Msg("batch already running elsewhere; skipping tick")
	case err != nil:
		w.log.Error().Err(err).Msg("batch run failed")
	case res.Processed > 0:
		w.log.Info().
			Str("batch_id", res.BatchID).
			Int("ok_count", res.OKCount).
			Int("failed_count", res.FailedCount).
			Msg("batch processed")
	}
}
