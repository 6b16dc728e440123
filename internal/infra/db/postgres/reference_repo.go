package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v4/pgxpool"

	"lesson-pipeline/internal/domain"
	"lesson-pipeline/internal/domain/model"
	"lesson-pipeline/internal/domain/ports/repository"
)

var (
	_ repository.ImageSpecRepository  = (*imageSpecRepo)(nil)
	_ repository.CurriculumRepository = (*curriculumRepo)(nil)
)

type imageSpecRepo struct {
	pool *pgxpool.Pool
}

func NewImageSpecRepo(pool *pgxpool.Pool) *imageSpecRepo {
	return &imageSpecRepo{pool: pool}
}

func (r *imageSpecRepo) Find(ctx context.Context, tx repository.Tx, imagePackID, imageType string) (*model.ImageSpec, error) {
	const q = `
SELECT image_pack_id, image_type, prompt_template, negative_prompt, width, height, steps, cfg_scale, sampler, workflow
FROM image_specs
WHERE image_pack_id = $1 AND image_type = $2`
	row, err := pickRow(ctx, r.pool, tx, q, imagePackID, imageType)
	if err != nil {
		return nil, err
	}
	var s model.ImageSpec
	if err := row.Scan(&s.ImagePackID, &s.ImageType, &s.PromptTemplate, &s.NegativePrompt,
		&s.Width, &s.Height, &s.Steps, &s.CFGScale, &s.Sampler, &s.Workflow); err != nil {
		return nil, scanErr(err)
	}
	return &s, nil
}

func (r *imageSpecRepo) Save(ctx context.Context, tx repository.Tx, s *model.ImageSpec) error {
	const q = `
INSERT INTO image_specs (image_pack_id, image_type, prompt_template, negative_prompt, width, height, steps, cfg_scale, sampler, workflow)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (image_pack_id, image_type) DO UPDATE SET
  prompt_template = EXCLUDED.prompt_template,
  negative_prompt = EXCLUDED.negative_prompt,
  width = EXCLUDED.width,
  height = EXCLUDED.height,
  steps = EXCLUDED.steps,
  cfg_scale = EXCLUDED.cfg_scale,
  sampler = EXCLUDED.sampler,
  workflow = EXCLUDED.workflow;`
	_, err := execSQL(ctx, r.pool, tx, q, s.ImagePackID, s.ImageType, s.PromptTemplate, s.NegativePrompt,
		s.Width, s.Height, s.Steps, s.CFGScale, s.Sampler, s.Workflow)
	if err != nil {
		return fmt.Errorf("save image spec: %w", err)
	}
	return nil
}

type curriculumRepo struct {
	pool *pgxpool.Pool
}

func NewCurriculumRepo(pool *pgxpool.Pool) *curriculumRepo {
	return &curriculumRepo{pool: pool}
}

// ResolveForLocale tries an exact (case-insensitive) locale match, then the
// region subtag of the locale as a country code.
func (r *curriculumRepo) ResolveForLocale(ctx context.Context, tx repository.Tx, locale string) (*model.Curriculum, error) {
	const byLocale = `
SELECT id, COALESCE(locale, ''), COALESCE(country_code, ''), name
FROM curricula WHERE lower(locale) = lower($1)`
	c, err := r.scanOne(ctx, tx, byLocale, locale)
	if err == nil || !errors.Is(err, domain.ErrNotFound) {
		return c, err
	}

	country := countryOf(locale)
	if country == "" {
		return nil, domain.ErrNotFound
	}
	const byCountry = `
SELECT id, COALESCE(locale, ''), COALESCE(country_code, ''), name
FROM curricula WHERE upper(country_code) = $1
ORDER BY id
LIMIT 1`
	return r.scanOne(ctx, tx, byCountry, country)
}

func (r *curriculumRepo) scanOne(ctx context.Context, tx repository.Tx, q string, arg string) (*model.Curriculum, error) {
	row, err := pickRow(ctx, r.pool, tx, q, arg)
	if err != nil {
		return nil, err
	}
	var c model.Curriculum
	if err := row.Scan(&c.ID, &c.Locale, &c.CountryCode, &c.Name); err != nil {
		return nil, scanErr(err)
	}
	return &c, nil
}

func (r *curriculumRepo) Save(ctx context.Context, tx repository.Tx, c *model.Curriculum) error {
	const q = `
INSERT INTO curricula (id, locale, country_code, name)
VALUES ($1, $2, $3, $4)
ON CONFLICT (id) DO UPDATE SET
  locale = EXCLUDED.locale,
  country_code = EXCLUDED.country_code,
  name = EXCLUDED.name;`
	_, err := execSQL(ctx, r.pool, tx, q, c.ID, nullString(c.Locale), nullString(strings.ToUpper(c.CountryCode)), c.Name)
	if err != nil {
		return fmt.Errorf("save curriculum: %w", err)
	}
	return nil
}

// countryOf returns the upper-cased region subtag of a BCP 47-ish locale ("en-AU", "pt_BR").
func countryOf(locale string) string {
	parts := strings.FieldsFunc(locale, func(r rune) bool { return r == '-' || r == '_' })
	if len(parts) < 2 {
		return ""
	}
	return strings.ToUpper(parts[len(parts)-1])
}
