package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"lesson-pipeline/internal/domain"
	"lesson-pipeline/internal/domain/model"
	"lesson-pipeline/internal/domain/ports/adapter"
	"lesson-pipeline/internal/infra/logging"
)

// Compile-time check
var _ LessonGenerator = (*lessonGenerator)(nil)

// LessonGenerator produces a validated lesson wrapper for a job, repairing
// invalid output at most once.
type LessonGenerator interface {
	Generate(ctx context.Context, job *model.GenerationJob, profile *model.PromptProfile) (*GeneratedLesson, error)
}

// GeneratedLesson is the validated wrapper plus bookkeeping about how it was obtained.
type GeneratedLesson struct {
	Wrapper         model.LessonWrapper
	Raw             string
	Repaired        bool
	GenerationCalls int
	ValidationCalls int
	Usage           adapter.Usage
}

// GenerationDefaults fill in parameters a prompt profile leaves unset.
type GenerationDefaults struct {
	Model           string
	Temperature     float64
	MaxOutputTokens int
}

type lessonGenerator struct {
	client    adapter.GenerationClient
	validator LessonValidator
	defaults  GenerationDefaults
	log       *zerolog.Logger
}

func NewLessonGenerator(client adapter.GenerationClient, validator LessonValidator, defaults GenerationDefaults, logger *zerolog.Logger) *lessonGenerator {
	l := logger.With().Str("component", "LessonGenerator").Logger()
	return &lessonGenerator{client: client, validator: validator, defaults: defaults, log: &l}
}

const repairInstruction = `The JSON you produced does not satisfy the lesson schema.

Validation errors:
%s

Your previous output:
%s

Return the corrected lesson as a single JSON object. Output JSON only, with no commentary and no code fences.`

func (g *lessonGenerator) Generate(ctx context.Context, job *model.GenerationJob, profile *model.PromptProfile) (*GeneratedLesson, error) {
	defer logging.TraceDuration(g.log, "LessonGenerator.Generate")()
	if profile == nil {
		return nil, domain.ErrPromptProfileMissing
	}
	vars := job.Vars()
	system := FillTemplate(profile.SystemPrompt, vars)
	user := FillTemplate(profile.UserPromptTemplate, vars)
	params := g.params(profile)

	out := &GeneratedLesson{}
	raw, err := g.call(ctx, system, user, params, out)
	if err != nil {
		return nil, err
	}

	obj := ParseLessonOutput(raw)
	res := g.validator.Validate(obj)
	out.ValidationCalls++
	if res.OK {
		out.Raw = raw
		out.Wrapper = model.WrapperFromMap(obj)
		return out, nil
	}

	g.log.Warn().
		Str("job_id", job.ID).
		Int("error_count", len(res.Errors)).
		Msg("generated lesson invalid; attempting repair")

	repairPrompt := fmt.Sprintf(repairInstruction, g.validator.FormatErrors(res.Errors), raw)
	out.Repaired = true
	repaired, err := g.call(ctx, system, repairPrompt, params, out)
	if err != nil {
		return nil, err
	}

	obj = ParseLessonOutput(repaired)
	res = g.validator.Validate(obj)
	out.ValidationCalls++
	if !res.OK {
		return out, &domain.ValidationFailedError{Errors: res.Errors}
	}
	out.Raw = repaired
	out.Wrapper = model.WrapperFromMap(obj)
	return out, nil
}

func (g *lessonGenerator) call(ctx context.Context, system, user string, params adapter.GenerationParams, out *GeneratedLesson) (string, error) {
	msgs := make([]adapter.Message, 0, 2)
	if strings.TrimSpace(system) != "" {
		msgs = append(msgs, adapter.Message{Role: adapter.RoleSystem, Content: system})
	}
	msgs = append(msgs, adapter.Message{Role: adapter.RoleUser, Content: user})

	out.GenerationCalls++
	c, err := g.client.Generate(ctx, msgs, params)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("generate lesson: %w", ctxErr)
		}
		var genErr *domain.GenerationError
		if errors.As(err, &genErr) {
			return "", err
		}
		return "", &domain.GenerationError{Err: err}
	}
	out.Usage.PromptTokens += c.Usage.PromptTokens
	out.Usage.CompletionTokens += c.Usage.CompletionTokens
	out.Usage.TotalTokens += c.Usage.TotalTokens
	return c.Text, nil
}

func (g *lessonGenerator) params(p *model.PromptProfile) adapter.GenerationParams {
	params := adapter.GenerationParams{
		Model:           g.defaults.Model,
		Temperature:     g.defaults.Temperature,
		MaxOutputTokens: g.defaults.MaxOutputTokens,
		JSONOutput:      true,
	}
	if p.Model != "" {
		params.Model = p.Model
	}
	if p.Temperature != nil {
		params.Temperature = *p.Temperature
	}
	if p.MaxOutputTokens > 0 {
		params.MaxOutputTokens = p.MaxOutputTokens
	}
	return params
}
