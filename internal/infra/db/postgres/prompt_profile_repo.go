package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"lesson-pipeline/internal/domain/model"
	"lesson-pipeline/internal/domain/ports/repository"
)

var _ repository.PromptProfileRepository = (*promptProfileRepo)(nil)

type promptProfileRepo struct {
	pool *pgxpool.Pool
}

func NewPromptProfileRepo(pool *pgxpool.Pool) *promptProfileRepo {
	return &promptProfileRepo{pool: pool}
}

func (r *promptProfileRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.PromptProfile, error) {
	const q = `
SELECT id, name, system_prompt, user_prompt_template, model, temperature, max_output_tokens
FROM prompt_profiles
WHERE id = $1`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	var p model.PromptProfile
	if err := row.Scan(&p.ID, &p.Name, &p.SystemPrompt, &p.UserPromptTemplate, &p.Model, &p.Temperature, &p.MaxOutputTokens); err != nil {
		return nil, scanErr(err)
	}
	return &p, nil
}

func (r *promptProfileRepo) Save(ctx context.Context, tx repository.Tx, p *model.PromptProfile) error {
	const q = `
INSERT INTO prompt_profiles (id, name, system_prompt, user_prompt_template, model, temperature, max_output_tokens, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (id) DO UPDATE SET
  name = EXCLUDED.name,
  system_prompt = EXCLUDED.system_prompt,
  user_prompt_template = EXCLUDED.user_prompt_template,
  model = EXCLUDED.model,
  temperature = EXCLUDED.temperature,
  max_output_tokens = EXCLUDED.max_output_tokens,
  updated_at = EXCLUDED.updated_at;`
	_, err := execSQL(ctx, r.pool, tx, q, p.ID, p.Name, p.SystemPrompt, p.UserPromptTemplate, p.Model, p.Temperature, p.MaxOutputTokens, time.Now())
	if err != nil {
		return fmt.Errorf("save prompt profile: %w", err)
	}
	return nil
}
