package worker

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"lesson-pipeline/internal/domain"
	"lesson-pipeline/internal/domain/model"
	"lesson-pipeline/internal/domain/ports/adapter"
	"lesson-pipeline/internal/domain/ports/repository"
)

type memJobRepo struct {
	mu       sync.Mutex
	jobs     map[string]*model.GenerationJob
	lastList int
	// stolen ids are claimed by "another worker" between list and claim
	stolen map[string]bool
}

func newMemJobRepo(jobs ...*model.GenerationJob) *memJobRepo {
	m := &memJobRepo{jobs: map[string]*model.GenerationJob{}, stolen: map[string]bool{}}
	for _, j := range jobs {
		_ = m.Create(context.Background(), nil, j)
	}
	return m
}

func (m *memJobRepo) Create(ctx context.Context, tx repository.Tx, job *model.GenerationJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *job
	m.jobs[job.ID] = &cp
	return nil
}

func (m *memJobRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.GenerationJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (m *memJobRepo) ListQueued(ctx context.Context, limit int) ([]*model.GenerationJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastList = limit
	var out []*model.GenerationJob
	for _, j := range m.jobs {
		if j.Status == model.GenerationJobQueued {
			cp := *j
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(a, b int) bool {
		if !out[a].CreatedAt.Equal(out[b].CreatedAt) {
			return out[a].CreatedAt.Before(out[b].CreatedAt)
		}
		return out[a].ID < out[b].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memJobRepo) Claim(ctx context.Context, id string) (*model.GenerationJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok || j.Status != model.GenerationJobQueued || m.stolen[id] {
		return nil, domain.ErrJobNotClaimable
	}
	now := time.Now()
	j.Status = model.GenerationJobRunning
	j.Attempts++
	j.StartedAt = &now
	cp := *j
	return &cp, nil
}

func (m *memJobRepo) Finish(ctx context.Context, tx repository.Tx, job *model.GenerationJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *job
	m.jobs[job.ID] = &cp
	return nil
}

func (m *memJobRepo) get(id string) *model.GenerationJob {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *m.jobs[id]
	return &cp
}

type memProfileRepo struct {
	profiles map[string]*model.PromptProfile
}

func (m *memProfileRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.PromptProfile, error) {
	p, ok := m.profiles[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return p, nil
}

func (m *memProfileRepo) Save(ctx context.Context, tx repository.Tx, p *model.PromptProfile) error {
	m.profiles[p.ID] = p
	return nil
}

type memSpecRepo struct{ specs map[string]*model.ImageSpec }

func (m *memSpecRepo) Find(ctx context.Context, tx repository.Tx, pack, typ string) (*model.ImageSpec, error) {
	s, ok := m.specs[pack+"/"+typ]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return s, nil
}

func (m *memSpecRepo) Save(ctx context.Context, tx repository.Tx, s *model.ImageSpec) error {
	m.specs[s.ImagePackID+"/"+s.ImageType] = s
	return nil
}

type memCurriculumRepo struct{ byLocale map[string]*model.Curriculum }

func (m *memCurriculumRepo) ResolveForLocale(ctx context.Context, tx repository.Tx, locale string) (*model.Curriculum, error) {
	if c, ok := m.byLocale[locale]; ok {
		return c, nil
	}
	return nil, domain.ErrNotFound
}

func (m *memCurriculumRepo) Save(ctx context.Context, tx repository.Tx, c *model.Curriculum) error {
	m.byLocale[c.Locale] = c
	return nil
}

type memLessonRepo struct {
	mu       sync.Mutex
	editions map[string]model.LessonEdition
	items    map[string][]model.ContentItem
}

func newMemLessonRepo() *memLessonRepo {
	return &memLessonRepo{editions: map[string]model.LessonEdition{}, items: map[string][]model.ContentItem{}}
}

func (m *memLessonRepo) UpsertTemplate(ctx context.Context, tx repository.Tx, t *model.LessonTemplate) error {
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
	delete(m.items, editionID)
	return nil
}

func (m *memLessonRepo) InsertContentItems(ctx context.Context, tx repository.Tx, items []model.ContentItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, it := range items {
		m.items[it.EditionID] = append(m.items[it.EditionID], it)
	}
	return nil
}

func (m *memLessonRepo) ListContentItems(ctx context.Context, tx repository.Tx, editionID string) ([]model.ContentItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.ContentItem(nil), m.items[editionID]...), nil
}

type memAssetJobRepo struct {
	mu   sync.Mutex
	jobs []*model.AssetJob
}

func (m *memAssetJobRepo) Insert(ctx context.Context, tx repository.Tx, j *model.AssetJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs = append(m.jobs, j)
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

// topicClient answers by the topic marker found in the prompt. A reply
// function may block on ctx, panic or return an error.
type topicClient struct {
	mu      sync.Mutex
	replies map[string]func(ctx context.Context, call int) (string, error)
	calls   map[string]int
}

func newTopicClient() *topicClient {
	return &topicClient{
		replies: map[string]func(ctx context.Context, call int) (string, error){},
		calls:   map[string]int{},
	}
}

func (c *topicClient) on(topic string, fn func(ctx context.Context, call int) (string, error)) {
	c.replies[topic] = fn
}

func (c *topicClient) Generate(ctx context.Context, msgs []adapter.Message, p adapter.GenerationParams) (adapter.Completion, error) {
	var sb strings.Builder
	for _, m := range msgs {
		sb.WriteString(m.Content)
	}
	all := sb.String()
	c.mu.Lock()
	var fn func(context.Context, int) (string, error)
	var topic string
	for t, f := range c.replies {
		if strings.Contains(all, "topic="+t+";") {
			fn, topic = f, t
			break
		}
	}
	call := 0
	if fn != nil {
		c.calls[topic]++
		call = c.calls[topic]
	}
	c.mu.Unlock()

	if fn == nil {
		return adapter.Completion{}, errors.New("no reply scripted")
	}
	text, err := fn(ctx, call)
	if err != nil {
		return adapter.Completion{}, err
	}
	return adapter.Completion{Text: text, Model: p.Model}, nil
}

func (c *topicClient) callsFor(topic string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[topic]
}

// memLocker records lock traffic; busy keys fail to lock.
type memLocker struct {
	mu     sync.Mutex
	held   map[string]string
	busy   map[string]bool
	locked []string
}

func newMemLocker() *memLocker {
	return &memLocker{held: map[string]string{}, busy: map[string]bool{}}
}

func (l *memLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.busy[key] {
		return "", domain.ErrLockNotAcquired
	}
	if _, ok := l.held[key]; ok {
		return "", domain.ErrLockNotAcquired
	}
	l.held[key] = "tok-" + key
	l.locked = append(l.locked, key)
	return l.held[key], nil
}

func (l *memLocker) Unlock(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] == token {
		delete(l.held, key)
	}
	return nil
}
