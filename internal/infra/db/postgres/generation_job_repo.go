package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"lesson-pipeline/internal/domain"
	"lesson-pipeline/internal/domain/model"
	"lesson-pipeline/internal/domain/ports/repository"
)

var _ repository.GenerationJobRepository = (*generationJobRepo)(nil)

type generationJobRepo struct {
	pool *pgxpool.Pool
}

func NewGenerationJobRepo(pool *pgxpool.Pool) *generationJobRepo {
	return &generationJobRepo{pool: pool}
}

const generationJobColumns = `
id, subject, year_level, topic, subtopic, locale, prompt_profile_id, template_id,
asset_plan, image_pack_id, generate_images, image_types,
status, attempts, COALESCE(last_error, ''), COALESCE(error_message, ''), COALESCE(failure_kind, ''),
validation_errors, COALESCE(edition_id, ''), image_status,
created_at, updated_at, started_at, finished_at`

func (r *generationJobRepo) Create(ctx context.Context, tx repository.Tx, job *model.GenerationJob) error {
	now := time.Now()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now
	if job.Status == "" {
		job.Status = model.GenerationJobQueued
	}
	if job.ImageStatus == "" {
		job.ImageStatus = model.ImageStatusNone
	}

	const q = `
INSERT INTO generation_jobs (
  id, subject, year_level, topic, subtopic, locale, prompt_profile_id, template_id,
  asset_plan, image_pack_id, generate_images, image_types,
  status, attempts, image_status, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17);`

	_, err := execSQL(ctx, r.pool, tx, q,
		job.ID, job.Subject, job.YearLevel, job.Topic, job.Subtopic, job.Locale, job.PromptProfileID, job.TemplateID,
		nullJSON(job.AssetPlan), job.ImagePackID, job.GenerateImages, job.ImageTypes,
		string(job.Status), job.Attempts, string(job.ImageStatus), job.CreatedAt, job.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("create generation job: %w", err)
	}
	return nil
}

func (r *generationJobRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.GenerationJob, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT `+generationJobColumns+` FROM generation_jobs WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	job, err := scanGenerationJob(row)
	if err != nil {
		return nil, scanErr(err)
	}
	return job, nil
}

func (r *generationJobRepo) ListQueued(ctx context.Context, limit int) ([]*model.GenerationJob, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := queryRows(ctx, r.pool, nil, `
SELECT `+generationJobColumns+`
FROM generation_jobs
WHERE status = 'queued'
ORDER BY created_at ASC, id ASC
LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list queued jobs: %w", err)
	}
	defer rows.Close()

	var out []*model.GenerationJob
	for rows.Next() {
		job, err := scanGenerationJob(rows)
		if err != nil {
			return nil, scanErr(err)
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

// Claim is a compare-and-set on status so concurrent runners never share a job.
func (r *generationJobRepo) Claim(ctx context.Context, id string) (*model.GenerationJob, error) {
	row, err := pickRow(ctx, r.pool, nil, `
UPDATE generation_jobs
SET status = 'running', attempts = attempts + 1, started_at = now(), updated_at = now()
WHERE id = $1 AND status = 'queued'
RETURNING `+generationJobColumns, id)
	if err != nil {
		return nil, err
	}
	job, err := scanGenerationJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrJobNotClaimable
		}
		return nil, scanErr(err)
	}
	return job, nil
}

func (r *generationJobRepo) Finish(ctx context.Context, tx repository.Tx, job *model.GenerationJob) error {
	var details []byte
	if len(job.ValidationErrors) > 0 {
		b, err := json.Marshal(job.ValidationErrors)
		if err != nil {
			return fmt.Errorf("encode validation errors: %w", err)
		}
		details = b
	}

	const q = `
UPDATE generation_jobs SET
  status = $2,
  last_error = $3,
  error_message = $4,
  failure_kind = $5,
  validation_errors = $6,
  edition_id = $7,
  image_status = $8,
  updated_at = $9,
  finished_at = $10
WHERE id = $1;`

	tag, err := execSQL(ctx, r.pool, tx, q,
		job.ID, string(job.Status), nullString(job.LastError), nullString(job.ErrorMessage),
		nullString(string(job.FailureKind)), nullJSON(details), nullString(job.EditionID),
		string(job.ImageStatus), job.UpdatedAt, job.FinishedAt)
	if err != nil {
		return fmt.Errorf("finish generation job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanGenerationJob(row pgx.Row) (*model.GenerationJob, error) {
	var (
		j                                model.GenerationJob
		assetPlan, validationErrors      []byte
		status, failureKind, imageStatus string
	)
	err := row.Scan(
		&j.ID, &j.Subject, &j.YearLevel, &j.Topic, &j.Subtopic, &j.Locale, &j.PromptProfileID, &j.TemplateID,
		&assetPlan, &j.ImagePackID, &j.GenerateImages, &j.ImageTypes,
		&status, &j.Attempts, &j.LastError, &j.ErrorMessage, &failureKind,
		&validationErrors, &j.EditionID, &imageStatus,
		&j.CreatedAt, &j.UpdatedAt, &j.StartedAt, &j.FinishedAt,
	)
	if err != nil {
		return nil, err
	}
	j.Status = model.GenerationJobStatus(status)
	j.FailureKind = model.FailureKind(failureKind)
	j.ImageStatus = model.ImageStatus(imageStatus)
	if len(assetPlan) > 0 {
		j.AssetPlan = json.RawMessage(assetPlan)
	}
	if len(validationErrors) > 0 {
		if err := json.Unmarshal(validationErrors, &j.ValidationErrors); err != nil {
			return nil, fmt.Errorf("decode validation errors: %w", err)
		}
	}
	return &j, nil
}
