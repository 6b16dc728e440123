package repository

import (
	"context"

	"lesson-pipeline/internal/domain/model"
)

type LessonRepository interface {
	UpsertTemplate(ctx context.Context, tx Tx, t *model.LessonTemplate) error
	UpsertEdition(ctx context.Context, tx Tx, e *model.LessonEdition) error

	DeleteContentItems(ctx context.Context, tx Tx, editionID string) error
	// InsertContentItems writes one chunk of items in a single statement.
	InsertContentItems(ctx context.Context, tx Tx, items []model.ContentItem) error
	// ListContentItems returns an edition's items ordered by order_index.
	ListContentItems(ctx context.Context, tx Tx, editionID string) ([]model.ContentItem, error)
}

type AssetJobRepository interface {
	Insert(ctx context.Context, tx Tx, job *model.AssetJob) error
	ListByEdition(ctx context.Context, tx Tx, editionID string) ([]*model.AssetJob, error)
}
