package repository

import (
	"context"

	"lesson-pipeline/internal/domain/model"
)

// ImageSpecRepository reads image spec records keyed by (image pack, image type).
type ImageSpecRepository interface {
	Find(ctx context.Context, tx Tx, imagePackID, imageType string) (*model.ImageSpec, error)
	Save(ctx context.Context, tx Tx, spec *model.ImageSpec) error
}

// CurriculumRepository resolves the grouping identifier an edition is filed under.
type CurriculumRepository interface {
	// ResolveForLocale prefers an exact locale match and falls back to the
	// locale's country. Returns domain.ErrNotFound when nothing matches.
	ResolveForLocale(ctx context.Context, tx Tx, locale string) (*model.Curriculum, error)
	Save(ctx context.Context, tx Tx, c *model.Curriculum) error
}
