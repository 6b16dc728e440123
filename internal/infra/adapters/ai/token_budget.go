package ai

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	"github.com/rs/zerolog"

	"lesson-pipeline/internal/domain"
	"lesson-pipeline/internal/domain/ports/adapter"
	"lesson-pipeline/internal/infra/metrics"
)

var errCountUnsupported = errors.New("token counting not supported")

var _ adapter.TokenCounter = (*TiktokenCounter)(nil)

// TiktokenCounter estimates prompt size locally. Models tiktoken does not
// know are counted with cl100k_base.
type TiktokenCounter struct {
	mu   sync.Mutex
	encs map[string]*tiktoken.Tiktoken
}

func NewTiktokenCounter() *TiktokenCounter {
	return &TiktokenCounter{encs: map[string]*tiktoken.Tiktoken{}}
}

// per-message framing overhead of the chat format
const tokensPerMessage = 4

func (c *TiktokenCounter) CountTokens(_ context.Context, model string, messages []adapter.Message) (int, error) {
	enc, err := c.encoding(model)
	if err != nil {
		return 0, err
	}
	n := 3
	for _, m := range messages {
		n += tokensPerMessage + len(enc.Encode(m.Role, nil, nil)) + len(enc.Encode(m.Content, nil, nil))
	}
	return n, nil
}

func (c *TiktokenCounter) encoding(model string) (*tiktoken.Tiktoken, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if enc, ok := c.encs[model]; ok {
		return enc, nil
	}
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		if enc, err = tiktoken.GetEncoding("cl100k_base"); err != nil {
			return nil, fmt.Errorf("load tiktoken encoding: %w", err)
		}
	}
	c.encs[model] = enc
	return enc, nil
}

var _ adapter.GenerationClient = (*tokenBudgetAI)(nil)

// tokenBudgetAI refuses calls whose prompt exceeds maxPromptTokens before
// they reach the provider.
type tokenBudgetAI struct {
	inner     adapter.GenerationClient
	counter   adapter.TokenCounter
	maxTokens int
	log       *zerolog.Logger
}

// NewTokenBudgetAI wraps inner with a prompt size check. A provider that can
// count its own tokens is preferred over the local counter.
func NewTokenBudgetAI(inner adapter.GenerationClient, fallback adapter.TokenCounter, maxPromptTokens int, logger *zerolog.Logger) adapter.GenerationClient {
	if maxPromptTokens <= 0 {
		return inner
	}
	l := logger.With().Str("component", "TokenBudgetAI").Logger()
	return &tokenBudgetAI{inner: inner, counter: fallback, maxTokens: maxPromptTokens, log: &l}
}

func (t *tokenBudgetAI) Generate(ctx context.Context, messages []adapter.Message, p adapter.GenerationParams) (adapter.Completion, error) {
	n, err := t.count(ctx, p.Model, messages)
	if err != nil {
		t.log.Warn().Err(err).Str("model", p.Model).Msg("token count failed; skipping budget check")
		return t.inner.Generate(ctx, messages, p)
	}
	if n > t.maxTokens {
		metrics.PrecheckBlocked(p.Model)
		return adapter.Completion{}, fmt.Errorf("%w: %d > %d", domain.ErrPromptTooLarge, n, t.maxTokens)
	}
	return t.inner.Generate(ctx, messages, p)
}

func (t *tokenBudgetAI) count(ctx context.Context, model string, messages []adapter.Message) (int, error) {
	if tc, ok := t.inner.(adapter.TokenCounter); ok {
		n, err := tc.CountTokens(ctx, model, messages)
		if err == nil {
			return n, nil
		}
		if !errors.Is(err, errCountUnsupported) {
			t.log.Debug().Err(err).Msg("provider token count failed; using local counter")
		}
	}
	if t.counter == nil {
		return 0, errCountUnsupported
	}
	return t.counter.CountTokens(ctx, model, messages)
}
