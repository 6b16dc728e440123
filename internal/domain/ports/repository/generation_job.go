package repository

import (
	"context"

	"lesson-pipeline/internal/domain/model"
)

type GenerationJobRepository interface {
	Create(ctx context.Context, tx Tx, job *model.GenerationJob) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.GenerationJob, error)

	// ListQueued returns up to limit queued jobs ordered by created_at ASC, id ASC.
	ListQueued(ctx context.Context, limit int) ([]*model.GenerationJob, error)

	// Claim atomically flips a queued job to running and increments attempts.
	// It returns domain.ErrJobNotClaimable when the job is no longer queued.
	Claim(ctx context.Context, id string) (*model.GenerationJob, error)

	// Finish persists the terminal state of a job (status, errors, edition, image status).
	Finish(ctx context.Context, tx Tx, job *model.GenerationJob) error
}
