package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"lesson-pipeline/internal/domain/model"
	"lesson-pipeline/internal/domain/ports/repository"
)

var _ repository.AssetJobRepository = (*assetJobRepo)(nil)

type assetJobRepo struct {
	pool *pgxpool.Pool
}

func NewAssetJobRepo(pool *pgxpool.Pool) *assetJobRepo {
	return &assetJobRepo{pool: pool}
}

func (r *assetJobRepo) Insert(ctx context.Context, tx repository.Tx, j *model.AssetJob) error {
	const q = `
INSERT INTO asset_jobs (
  id, edition_id, content_item_id, source_job_id, image_type, usage_tag, role,
  prompt, negative_prompt, width, height, steps, cfg_scale, sampler, seed, workflow,
  status, attempts, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19);`
	_, err := execSQL(ctx, r.pool, tx, q,
		j.ID, j.EditionID, nullString(j.ContentItemID), j.SourceJobID, j.ImageType, j.UsageTag, j.Role,
		j.Prompt, j.NegativePrompt, j.Width, j.Height, j.Steps, j.CFGScale, j.Sampler, j.Seed, j.Workflow,
		string(j.Status), j.Attempts, j.CreatedAt)
	return err
}

func (r *assetJobRepo) ListByEdition(ctx context.Context, tx repository.Tx, editionID string) ([]*model.AssetJob, error) {
	rows, err := queryRows(ctx, r.pool, tx, `
SELECT id, edition_id, COALESCE(content_item_id, ''), source_job_id, image_type, usage_tag, role,
       prompt, negative_prompt, width, height, steps, cfg_scale, sampler, seed, workflow,
       status, attempts, created_at
FROM asset_jobs
WHERE edition_id = $1
ORDER BY created_at ASC, id ASC`, editionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.AssetJob
	for rows.Next() {
		var (
			j      model.AssetJob
			status string
		)
		if err := rows.Scan(&j.ID, &j.EditionID, &j.ContentItemID, &j.SourceJobID, &j.ImageType, &j.UsageTag, &j.Role,
			&j.Prompt, &j.NegativePrompt, &j.Width, &j.Height, &j.Steps, &j.CFGScale, &j.Sampler, &j.Seed, &j.Workflow,
			&status, &j.Attempts, &j.CreatedAt); err != nil {
			return nil, scanErr(err)
		}
		j.Status = model.AssetJobStatus(status)
		out = append(out, &j)
	}
	return out, rows.Err()
}
