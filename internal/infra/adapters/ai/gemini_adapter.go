package ai

import (
	"context"
	"errors"
	"strings"
	"time"

	"google.golang.org/genai"

	"lesson-pipeline/internal/domain"
	"lesson-pipeline/internal/domain/ports/adapter"
	"lesson-pipeline/internal/infra/metrics"
)

const ProviderGemini = "gemini"

var (
	_ adapter.GenerationClient = (*GeminiAdapter)(nil)
	_ adapter.TokenCounter     = (*GeminiAdapter)(nil)
)

type GeminiAdapter struct {
	client       *genai.Client
	defaultModel string
}

// NewGeminiAdapter creates a Gemini adapter using the official SDK.
func NewGeminiAdapter(ctx context.Context, apiKey, defaultModel string, timeout time.Duration) (*GeminiAdapter, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: empty api key")
	}
	if defaultModel == "" {
		defaultModel = "gemini-2.0-flash"
	}
	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if timeout > 0 {
		cfg.HTTPOptions.Timeout = &timeout
	}
	c, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &GeminiAdapter{client: c, defaultModel: defaultModel}, nil
}

func (g *GeminiAdapter) CountTokens(ctx context.Context, model string, messages []adapter.Message) (int, error) {
	system, contents := toGenAIContents(messages)
	if system != nil {
		contents = append([]*genai.Content{system}, contents...)
	}
	resp, err := g.client.Models.CountTokens(ctx, modelOrDefault(model, g.defaultModel), contents, nil)
	if err != nil {
		return 0, err
	}
	return int(resp.TotalTokens), nil
}

func (g *GeminiAdapter) Generate(ctx context.Context, messages []adapter.Message, p adapter.GenerationParams) (adapter.Completion, error) {
	if len(messages) == 0 {
		return adapter.Completion{}, &domain.GenerationError{Provider: ProviderGemini, Err: errors.New("no messages")}
	}
	model := modelOrDefault(p.Model, g.defaultModel)
	system, contents := toGenAIContents(messages)

	cfg := &genai.GenerateContentConfig{
		SystemInstruction: system,
		Temperature:       genai.Ptr(float32(p.Temperature)),
	}
	if p.MaxOutputTokens > 0 {
		cfg.MaxOutputTokens = int32(p.MaxOutputTokens)
	}
	if p.JSONOutput {
		cfg.ResponseMIMEType = "application/json"
	}

	start := time.Now()
	resp, err := g.client.Models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		metrics.ObserveGeneration(ProviderGemini, model, 0, 0, time.Since(start), false)
		return adapter.Completion{}, &domain.GenerationError{Provider: ProviderGemini, Err: err}
	}

	out := adapter.Completion{Model: model, Provider: ProviderGemini, Text: resp.Text()}
	if resp.UsageMetadata != nil {
		out.Usage.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		out.Usage.CompletionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
		out.Usage.TotalTokens = int(resp.UsageMetadata.TotalTokenCount)
	}
	metrics.ObserveGeneration(ProviderGemini, model, out.Usage.PromptTokens, out.Usage.CompletionTokens, time.Since(start), out.Text != "")
	if out.Text == "" {
		return out, &domain.GenerationError{Provider: ProviderGemini, Err: domain.ErrEmptyGeneration}
	}
	return out, nil
}

// toGenAIContents splits system messages into a single system instruction;
// Gemini has no system role in the turn history.
func toGenAIContents(msgs []adapter.Message) (*genai.Content, []*genai.Content) {
	var (
		system []string
		out    = make([]*genai.Content, 0, len(msgs))
	)
	for _, m := range msgs {
		role := genai.RoleUser
		switch strings.ToLower(m.Role) {
		case adapter.RoleSystem:
			system = append(system, m.Content)
			continue
		case adapter.RoleAssistant, "model":
			role = genai.RoleModel
		}
		out = append(out, genai.NewContentFromText(m.Content, genai.Role(role)))
	}
	if len(system) == 0 {
		return nil, out
	}
	return genai.NewContentFromText(strings.Join(system, "\n\n"), genai.RoleUser), out
}
