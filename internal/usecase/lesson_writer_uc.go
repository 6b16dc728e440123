package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/oklog/ulid/v2"

	"lesson-pipeline/internal/domain"
	"lesson-pipeline/internal/domain/model"
	"lesson-pipeline/internal/domain/ports/repository"
)

// DefaultContentChunkSize bounds the rows written by one content item insert.
const DefaultContentChunkSize = 50

// Compile-time check
var _ LessonWriter = (*lessonWriter)(nil)

// LessonWriter persists a generated lesson. Every operation is idempotent for
// a given edition except InsertAssetJobs, which always creates fresh rows.
type LessonWriter interface {
	// PersistLesson resolves the curriculum, upserts template and edition and
	// replaces the edition's content items.
	PersistLesson(ctx context.Context, job *model.GenerationJob, w model.LessonWrapper, acts []model.Activity) (*PersistedLesson, error)

	UpsertTemplate(ctx context.Context, tx repository.Tx, t *model.LessonTemplate) error
	UpsertEdition(ctx context.Context, tx repository.Tx, e *model.LessonEdition) error
	ReplaceContentItems(ctx context.Context, editionID string, items []model.ContentItem) error
	InsertAssetJobs(ctx context.Context, job *model.GenerationJob, editionID string, reqs []model.AssetRequest) (int, error)
}

type PersistedLesson struct {
	Template *model.LessonTemplate
	Edition  *model.LessonEdition
	Items    []model.ContentItem
}

type lessonWriter struct {
	lessons   repository.LessonRepository
	assets    repository.AssetJobRepository
	curricula repository.CurriculumRepository
	tm        repository.TransactionManager
	chunkSize int
	now       func() time.Time
	newID     func() string
}

// NewLessonWriter builds a writer; tm may be nil, in which case template and
// edition upserts run without a shared transaction.
func NewLessonWriter(
	lessons repository.LessonRepository,
	assets repository.AssetJobRepository,
	curricula repository.CurriculumRepository,
	tm repository.TransactionManager,
	chunkSize int,
) *lessonWriter {
	if chunkSize <= 0 {
		chunkSize = DefaultContentChunkSize
	}
	return &lessonWriter{
		lessons:   lessons,
		assets:    assets,
		curricula: curricula,
		tm:        tm,
		chunkSize: chunkSize,
		now:       time.Now,
		newID:     func() string { return ulid.Make().String() },
	}
}

func (lw *lessonWriter) PersistLesson(ctx context.Context, job *model.GenerationJob, w model.LessonWrapper, acts []model.Activity) (*PersistedLesson, error) {
	// Resolve before any write: an edition must never exist without a curriculum.
	cur, err := lw.curricula.ResolveForLocale(ctx, nil, job.Locale)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: %q", domain.ErrCurriculumNotResolved, job.Locale)
		}
		return nil, &domain.PersistenceError{Op: "resolve curriculum", Err: err}
	}

	now := lw.now()
	tpl := &model.LessonTemplate{
		ID:        TemplateIDFor(job),
		Subject:   job.Subject,
		YearLevel: job.YearLevel,
		Topic:     job.Topic,
		Subtopic:  job.Subtopic,
		Title:     w.Title,
		UpdatedAt: now,
	}
	if tpl.Title == "" {
		tpl.Title = job.Topic
	}
	ed := &model.LessonEdition{
		ID:           EditionIDFor(tpl.ID, job.Locale),
		TemplateID:   tpl.ID,
		Locale:       job.Locale,
		CurriculumID: cur.ID,
		Title:        tpl.Title,
		Summary:      w.Summary,
		Objectives:   w.Objectives,
		SourceJobID:  job.ID,
		UpdatedAt:    now,
	}

	writeHeader := func(ctx context.Context, tx repository.Tx) error {
		if err := lw.UpsertTemplate(ctx, tx, tpl); err != nil {
			return err
		}
		return lw.UpsertEdition(ctx, tx, ed)
	}
	if lw.tm != nil {
		err = lw.tm.WithTx(ctx, pgx.TxOptions{}, writeHeader)
	} else {
		err = writeHeader(ctx, nil)
	}
	if err != nil {
		return nil, err
	}

	items := model.BindActivities(ed.ID, acts)
	if err := lw.ReplaceContentItems(ctx, ed.ID, items); err != nil {
		return nil, err
	}
	return &PersistedLesson{Template: tpl, Edition: ed, Items: items}, nil
}

func (lw *lessonWriter) UpsertTemplate(ctx context.Context, tx repository.Tx, t *model.LessonTemplate) error {
	if err := lw.lessons.UpsertTemplate(ctx, tx, t); err != nil {
		return &domain.PersistenceError{Op: "upsert template", Err: err}
	}
	return nil
}

func (lw *lessonWriter) UpsertEdition(ctx context.Context, tx repository.Tx, e *model.LessonEdition) error {
	if e.CurriculumID == "" {
		return fmt.Errorf("%w: edition %s", domain.ErrCurriculumNotResolved, e.ID)
	}
	if err := lw.lessons.UpsertEdition(ctx, tx, e); err != nil {
		return &domain.PersistenceError{Op: "upsert edition", Err: err}
	}
	return nil
}

// ReplaceContentItems deletes the edition's items and inserts items in
// chunks. A failure midway is not rolled back; re-running heals it.
func (lw *lessonWriter) ReplaceContentItems(ctx context.Context, editionID string, items []model.ContentItem) error {
	if err := lw.lessons.DeleteContentItems(ctx, nil, editionID); err != nil {
		return &domain.PersistenceError{Op: "delete content items", Err: err}
	}
	for start := 0; start < len(items); start += lw.chunkSize {
		end := start + lw.chunkSize
		if end > len(items) {
			end = len(items)
		}
		if err := lw.lessons.InsertContentItems(ctx, nil, items[start:end]); err != nil {
			return &domain.PersistenceError{Op: fmt.Sprintf("insert content items [%d:%d]", start, end), Err: err}
		}
	}
	return nil
}

// InsertAssetJobs writes one queued asset job per request and stops at the
// first failure. It returns how many rows were written.
func (lw *lessonWriter) InsertAssetJobs(ctx context.Context, job *model.GenerationJob, editionID string, reqs []model.AssetRequest) (int, error) {
	for i, r := range reqs {
		aj := &model.AssetJob{
			ID:           lw.newID(),
			EditionID:    editionID,
			SourceJobID:  job.ID,
			AssetRequest: r,
			Status:       model.AssetJobQueued,
			Attempts:     0,
			CreatedAt:    lw.now(),
		}
		if err := lw.assets.Insert(ctx, nil, aj); err != nil {
			return i, &domain.PersistenceError{Op: fmt.Sprintf("insert asset job %d/%d", i+1, len(reqs)), Err: err}
		}
	}
	return len(reqs), nil
}
