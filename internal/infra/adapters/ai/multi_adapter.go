package ai

import (
	"context"
	"fmt"
	"strings"

	"lesson-pipeline/internal/domain"
	"lesson-pipeline/internal/domain/ports/adapter"
)

var _ adapter.GenerationClient = (*MultiAIAdapter)(nil)

// MultiAIAdapter routes each call to a provider by model name.
type MultiAIAdapter struct {
	defaultProvider string // e.g., "openai" or "gemini"
	byProvider      map[string]adapter.GenerationClient
	modelToProvider map[string]string // model -> provider
}

// NewMultiAIAdapter does not inject any default model; it only knows a default provider.
// Each provider adapter is responsible for its own default model.
func NewMultiAIAdapter(
	defaultProvider string,
	byProvider map[string]adapter.GenerationClient,
	modelToProvider map[string]string,
) *MultiAIAdapter {
	return &MultiAIAdapter{
		defaultProvider: strings.ToLower(defaultProvider),
		byProvider:      byProvider,
		modelToProvider: modelToProvider,
	}
}

func (m *MultiAIAdapter) resolveProvider(model string) string {
	if p := m.modelToProvider[model]; p != "" {
		return strings.ToLower(p)
	}
	l := strings.ToLower(model)
	switch {
	case strings.HasPrefix(l, "gemini"):
		return ProviderGemini
	case strings.HasPrefix(l, "gpt"), strings.HasPrefix(l, "o1"), strings.HasPrefix(l, "o3"), strings.HasPrefix(l, "o4"):
		return ProviderOpenAI
	default:
		return m.defaultProvider
	}
}

func (m *MultiAIAdapter) pick(model string) (string, adapter.GenerationClient) {
	prov := m.resolveProvider(model)
	if a := m.byProvider[prov]; a != nil {
		return prov, a
	}
	if a := m.byProvider[m.defaultProvider]; a != nil {
		return m.defaultProvider, a
	}
	return prov, nil
}

func (m *MultiAIAdapter) Generate(ctx context.Context, messages []adapter.Message, p adapter.GenerationParams) (adapter.Completion, error) {
	prov, a := m.pick(p.Model)
	if a == nil {
		return adapter.Completion{}, &domain.GenerationError{Provider: prov, Err: fmt.Errorf("no provider configured for model %q", p.Model)}
	}
	return a.Generate(ctx, messages, p)
}

// CountTokens delegates to the routed provider when it can count.
func (m *MultiAIAdapter) CountTokens(ctx context.Context, model string, messages []adapter.Message) (int, error) {
	_, a := m.pick(model)
	if tc, ok := a.(adapter.TokenCounter); ok {
		return tc.CountTokens(ctx, model, messages)
	}
	return 0, errCountUnsupported
}
