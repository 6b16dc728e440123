package ai

import (
	"context"

	"lesson-pipeline/internal/domain/ports/adapter"
)

// Compile-time check
var _ adapter.GenerationClient = (*limitedAI)(nil)

type limitedAI struct {
	inner adapter.GenerationClient
	sem   chan struct{}
}

// NewLimitedAI caps concurrent generation calls across all workers.
func NewLimitedAI(inner adapter.GenerationClient, maxConcurrent int) adapter.GenerationClient {
	if maxConcurrent <= 0 {
		return inner
	}
	return &limitedAI{
		inner: inner,
		sem:   make(chan struct{}, maxConcurrent),
	}
}

func (l *limitedAI) Generate(ctx context.Context, messages []adapter.Message, p adapter.GenerationParams) (adapter.Completion, error) {
	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		return adapter.Completion{}, ctx.Err()
	}
	defer func() { <-l.sem }()
	return l.inner.Generate(ctx, messages, p)
}

func (l *limitedAI) CountTokens(ctx context.Context, model string, messages []adapter.Message) (int, error) {
	if tc, ok := l.inner.(adapter.TokenCounter); ok {
		return tc.CountTokens(ctx, model, messages)
	}
	return 0, errCountUnsupported
}
