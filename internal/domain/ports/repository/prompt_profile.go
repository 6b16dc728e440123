package repository

import (
	"context"

	"lesson-pipeline/internal/domain/model"
)

type PromptProfileRepository interface {
	FindByID(ctx context.Context, tx Tx, id string) (*model.PromptProfile, error)
	Save(ctx context.Context, tx Tx, p *model.PromptProfile) error
}
