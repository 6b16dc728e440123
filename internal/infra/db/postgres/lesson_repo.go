package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v4/pgxpool"

	"lesson-pipeline/internal/domain/model"
	"lesson-pipeline/internal/domain/ports/repository"
)

var _ repository.LessonRepository = (*lessonRepo)(nil)

type lessonRepo struct {
	pool *pgxpool.Pool
}

func NewLessonRepo(pool *pgxpool.Pool) *lessonRepo {
	return &lessonRepo{pool: pool}
}

func (r *lessonRepo) UpsertTemplate(ctx context.Context, tx repository.Tx, t *model.LessonTemplate) error {
	const q = `
INSERT INTO lesson_templates (id, subject, year_level, topic, subtopic, title, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (id) DO UPDATE SET
  subject = EXCLUDED.subject,
  year_level = EXCLUDED.year_level,
  topic = EXCLUDED.topic,
  subtopic = EXCLUDED.subtopic,
  title = EXCLUDED.title,
  updated_at = EXCLUDED.updated_at;`
	_, err := execSQL(ctx, r.pool, tx, q, t.ID, t.Subject, t.YearLevel, t.Topic, t.Subtopic, t.Title, t.UpdatedAt)
	return err
}

func (r *lessonRepo) UpsertEdition(ctx context.Context, tx repository.Tx, e *model.LessonEdition) error {
	objectives := e.Objectives
	if objectives == nil {
		objectives = []string{}
	}
	obj, err := json.Marshal(objectives)
	if err != nil {
		return fmt.Errorf("encode objectives: %w", err)
	}
	const q = `
INSERT INTO lesson_editions (id, template_id, locale, curriculum_id, title, summary, objectives, source_job_id, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (id) DO UPDATE SET
  template_id = EXCLUDED.template_id,
  locale = EXCLUDED.locale,
  curriculum_id = EXCLUDED.curriculum_id,
  title = EXCLUDED.title,
  summary = EXCLUDED.summary,
  objectives = EXCLUDED.objectives,
  source_job_id = EXCLUDED.source_job_id,
  updated_at = EXCLUDED.updated_at;`
	_, err = execSQL(ctx, r.pool, tx, q, e.ID, e.TemplateID, e.Locale, e.CurriculumID, e.Title, e.Summary,
		string(obj), nullString(e.SourceJobID), e.UpdatedAt)
	return err
}

func (r *lessonRepo) DeleteContentItems(ctx context.Context, tx repository.Tx, editionID string) error {
	_, err := execSQL(ctx, r.pool, tx, `DELETE FROM content_items WHERE edition_id = $1`, editionID)
	return err
}

const contentItemArgs = 7

// InsertContentItems writes items with one multi-row INSERT. Callers bound
// the chunk size; Postgres caps a statement at 65535 parameters.
func (r *lessonRepo) InsertContentItems(ctx context.Context, tx repository.Tx, items []model.ContentItem) error {
	if len(items) == 0 {
		return nil
	}
	var sb strings.Builder
	sb.WriteString(`INSERT INTO content_items (id, edition_id, order_index, phase, type, title, content) VALUES `)
	args := make([]interface{}, 0, len(items)*contentItemArgs)
	for i, it := range items {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * contentItemArgs
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d, $%d, $%d, $%d)", base+1, base+2, base+3, base+4, base+5, base+6, base+7)

		content := it.Content
		if content == nil {
			content = map[string]any{}
		}
		b, err := json.Marshal(content)
		if err != nil {
			return fmt.Errorf("encode content of %s: %w", it.ID, err)
		}
		var title interface{}
		if it.Title != nil {
			title = *it.Title
		}
		args = append(args, it.ID, it.EditionID, it.OrderIndex, it.Phase, it.Type, title, string(b))
	}
	_, err := execSQL(ctx, r.pool, tx, sb.String(), args...)
	return err
}

func (r *lessonRepo) ListContentItems(ctx context.Context, tx repository.Tx, editionID string) ([]model.ContentItem, error) {
	rows, err := queryRows(ctx, r.pool, tx, `
SELECT id, edition_id, order_index, phase, type, title, content
FROM content_items
WHERE edition_id = $1
ORDER BY order_index ASC`, editionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ContentItem
	for rows.Next() {
		var (
			it      model.ContentItem
			content []byte
		)
		if err := rows.Scan(&it.ID, &it.EditionID, &it.OrderIndex, &it.Phase, &it.Type, &it.Title, &content); err != nil {
			return nil, scanErr(err)
		}
		if err := json.Unmarshal(content, &it.Content); err != nil {
			return nil, fmt.Errorf("decode content of %s: %w", it.ID, err)
		}
		out = append(out, it)
	}
	return out, rows.Err()
}
