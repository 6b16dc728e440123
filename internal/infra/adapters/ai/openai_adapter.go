package ai

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"lesson-pipeline/internal/domain"
	"lesson-pipeline/internal/domain/ports/adapter"
	"lesson-pipeline/internal/infra/metrics"
)

const ProviderOpenAI = "openai"

// Compile-time assurance this adapter satisfies the port
var _ adapter.GenerationClient = (*OpenAIAdapter)(nil)

// OpenAIAdapter calls the Chat Completions API. A custom base URL points it
// at any OpenAI-compatible gateway.
type OpenAIAdapter struct {
	client       openai.Client
	defaultModel string
}

func NewOpenAIAdapter(apiKey, baseURL, defaultModel string, timeout time.Duration) (*OpenAIAdapter, error) {
	if apiKey == "" {
		return nil, errors.New("openai api key empty")
	}
	if defaultModel == "" {
		defaultModel = "gpt-4o-mini"
	}
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimRight(baseURL, "/")+"/"))
	}
	if timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(timeout))
	}
	return &OpenAIAdapter{client: openai.NewClient(opts...), defaultModel: defaultModel}, nil
}

func (o *OpenAIAdapter) Generate(ctx context.Context, messages []adapter.Message, p adapter.GenerationParams) (adapter.Completion, error) {
	model := modelOrDefault(p.Model, o.defaultModel)
	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(model),
		Messages:    toOpenAIMessages(messages),
		Temperature: openai.Float(p.Temperature),
	}
	if p.MaxOutputTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(p.MaxOutputTokens))
	}
	if p.JSONOutput {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &openai.ResponseFormatJSONObjectParam{},
		}
	}

	start := time.Now()
	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		metrics.ObserveGeneration(ProviderOpenAI, model, 0, 0, time.Since(start), false)
		return adapter.Completion{}, &domain.GenerationError{Provider: ProviderOpenAI, Err: err}
	}

	out := adapter.Completion{
		Model:    model,
		Provider: ProviderOpenAI,
		Usage: adapter.Usage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
	}
	if resp.Model != "" {
		out.Model = resp.Model
	}
	for _, c := range resp.Choices {
		if c.Message.Content != "" {
			out.Text = c.Message.Content
			break
		}
	}
	metrics.ObserveGeneration(ProviderOpenAI, model, out.Usage.PromptTokens, out.Usage.CompletionTokens, time.Since(start), out.Text != "")
	if out.Text == "" {
		return out, &domain.GenerationError{Provider: ProviderOpenAI, Err: domain.ErrEmptyGeneration}
	}
	return out, nil
}

func toOpenAIMessages(msgs []adapter.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch strings.ToLower(m.Role) {
		case adapter.RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case adapter.RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

func modelOrDefault(model, def string) string {
	if strings.TrimSpace(model) != "" {
		return model
	}
	return def
}
