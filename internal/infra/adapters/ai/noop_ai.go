package ai

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"lesson-pipeline/internal/domain/ports/adapter"
)

const ProviderNoop = "noop"

var _ adapter.GenerationClient = (*NoopAIAdapter)(nil)

// NoopAIAdapter returns a fixed valid lesson for local/dev runs without
// provider keys.
type NoopAIAdapter struct {
	delay time.Duration
	log   *zerolog.Logger
}

func NewNoopAIAdapter(logger *zerolog.Logger) *NoopAIAdapter {
	l := logger.With().Str("component", "NoopAI").Logger()
	return &NoopAIAdapter{delay: 100 * time.Millisecond, log: &l}
}

func (a *NoopAIAdapter) Generate(ctx context.Context, messages []adapter.Message, p adapter.GenerationParams) (adapter.Completion, error) {
	select {
	case <-time.After(a.delay):
	case <-ctx.Done():
		return adapter.Completion{}, ctx.Err()
	}
	a.log.Debug().Int("messages", len(messages)).Str("model", p.Model).Msg("noop generation")

	title := "Sample lesson"
	if n := len(messages); n > 0 {
		if first := strings.TrimSpace(strings.SplitN(messages[n-1].Content, "\n", 2)[0]); first != "" && len(first) <= 120 {
			title = first
		}
	}
	b, _ := json.Marshal(map[string]any{
		"title":       title,
		"summary":     "Generated without a model provider.",
		"objectives":  []string{"Read the explanation", "Answer the quiz"},
		"explanation": "This placeholder lesson was produced by the noop generator.",
		"quiz": []map[string]any{
			{"question": "Which generator produced this lesson?", "options": []string{"noop", "openai"}, "answer": "noop"},
		},
	})
	text := string(b)
	return adapter.Completion{
		Text:     text,
		Model:    p.Model,
		Provider: ProviderNoop,
		Usage:    adapter.Usage{PromptTokens: 0, CompletionTokens: len(text) / 4, TotalTokens: len(text) / 4},
	}, nil
}
