package usecase

import (
	"context"
	"errors"
	"sort"
	"sync"

	"lesson-pipeline/internal/domain"
	"lesson-pipeline/internal/domain/model"
	"lesson-pipeline/internal/domain/ports/adapter"
	"lesson-pipeline/internal/domain/ports/repository"

	"github.com/jackc/pgx/v4"
)

// memLessonRepo is a small in-memory LessonRepository used by unit tests.
type memLessonRepo struct {
	mu        sync.Mutex
	templates map[string]model.LessonTemplate
	editions  map[string]model.LessonEdition
	items     map[string]model.ContentItem // by item id

	insertCalls  []int // chunk sizes, in call order
	failInsertAt int   // 1-based call index that fails; 0 disables
}

func newMemLessonRepo() *memLessonRepo {
	return &memLessonRepo{
		templates: make(map[string]model.LessonTemplate),
		editions:  make(map[string]model.LessonEdition),
		items:     make(map[string]model.ContentItem),
	}
}

func (m *memLessonRepo) UpsertTemplate(ctx context.Context, tx repository.Tx, t *model.LessonTemplate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.templates[t.ID] = *t
	return nil
}

func (m *memLessonRepo) UpsertEdition(ctx context.Context, tx repository.Tx, e *model.LessonEdition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.editions[e.ID] = *e
	return nil
}

func (m *memLessonRepo) DeleteContentItems(ctx context.Context, tx repository.Tx, editionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, it := range m.items {
		if it.EditionID == editionID {
			delete(m.items, id)
		}
	}
	return nil
}

func (m *memLessonRepo) InsertContentItems(ctx context.Context, tx repository.Tx, items []model.ContentItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insertCalls = append(m.insertCalls, len(items))
	if m.failInsertAt > 0 && len(m.insertCalls) == m.failInsertAt {
		return errors.New("insert failed")
	}
	for _, it := range items {
		if _, ok := m.items[it.ID]; ok {
			return domain.ErrAlreadyExists
		}
		m.items[it.ID] = it
	}
	return nil
}

func (m *memLessonRepo) ListContentItems(ctx context.Context, tx repository.Tx, editionID string) ([]model.ContentItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.ContentItem
	for _, it := range m.items {
		if it.EditionID == editionID {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderIndex < out[j].OrderIndex })
	return out, nil
}

type memAssetJobRepo struct {
	mu       sync.Mutex
	jobs     []*model.AssetJob
	failFrom int // 1-based insert index from which inserts fail; 0 disables
	calls    int
}

func (m *memAssetJobRepo) Insert(ctx context.Context, tx repository.Tx, job *model.AssetJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.failFrom > 0 && m.calls >= m.failFrom {
		return errors.New("asset insert failed")
	}
	cp := *job
	m.jobs = append(m.jobs, &cp)
	return nil
}

func (m *memAssetJobRepo) ListByEdition(ctx context.Context, tx repository.Tx, editionID string) ([]*model.AssetJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.AssetJob
	for _, j := range m.jobs {
		if j.EditionID == editionID {
			out = append(out, j)
		}
	}
	return out, nil
}

// memCurriculumRepo resolves by exact locale, then by the locale's country.
type memCurriculumRepo struct {
	byLocale  map[string]*model.Curriculum
	byCountry map[string]*model.Curriculum
	err       error
}

func newMemCurriculumRepo(cs ...*model.Curriculum) *memCurriculumRepo {
	m := &memCurriculumRepo{byLocale: map[string]*model.Curriculum{}, byCountry: map[string]*model.Curriculum{}}
	for _, c := range cs {
		_ = m.Save(context.Background(), nil, c)
	}
	return m
}

func (m *memCurriculumRepo) ResolveForLocale(ctx context.Context, tx repository.Tx, locale string) (*model.Curriculum, error) {
	if m.err != nil {
		return nil, m.err
	}
	if c, ok := m.byLocale[locale]; ok {
		return c, nil
	}
	if i := len(locale) - 2; i > 0 {
		if c, ok := m.byCountry[locale[i:]]; ok {
			return c, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memCurriculumRepo) Save(ctx context.Context, tx repository.Tx, c *model.Curriculum) error {
	if c.Locale != "" {
		m.byLocale[c.Locale] = c
	}
	if c.CountryCode != "" {
		m.byCountry[c.CountryCode] = c
	}
	return nil
}

// noTxManager runs fn directly, recording how many transactions were opened.
type noTxManager struct{ calls int }

func (m *noTxManager) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	m.calls++
	return fn(ctx, nil)
}

// scriptedClient returns its replies in order and records every call.
type scriptedClient struct {
	mu      sync.Mutex
	replies []string
	errs    []error
	calls   [][]adapter.Message
	params  []adapter.GenerationParams
}

func (c *scriptedClient) Generate(ctx context.Context, msgs []adapter.Message, p adapter.GenerationParams) (adapter.Completion, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := len(c.calls)
	c.calls = append(c.calls, msgs)
	c.params = append(c.params, p)
	if i < len(c.errs) && c.errs[i] != nil {
		return adapter.Completion{}, c.errs[i]
	}
	if i >= len(c.replies) {
		return adapter.Completion{}, errors.New("unexpected generation call")
	}
	return adapter.Completion{
		Text:  c.replies[i],
		Model: p.Model,
		Usage: adapter.Usage{PromptTokens: 10, CompletionTokens: 20, TotalTokens: 30},
	}, nil
}

// countingValidator wraps a LessonValidator and counts Validate calls.
type countingValidator struct {
	LessonValidator
	calls int
}

func (v *countingValidator) Validate(obj map[string]any) ValidationResult {
	v.calls++
	return v.LessonValidator.Validate(obj)
}
