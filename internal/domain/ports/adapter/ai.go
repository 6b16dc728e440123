package adapter

import "context"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"` // "user", "assistant", "system"
	Content string `json:"content"`
}

// GenerationParams are the sampling parameters of a single call.
type GenerationParams struct {
	Model           string
	Temperature     float64
	MaxOutputTokens int
	// JSONOutput asks providers that support it to constrain output to a JSON object.
	JSONOutput bool
}

// Usage for a single generation call.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

type Completion struct {
	Text     string
	Model    string
	Provider string
	Usage    Usage
}

// GenerationClient is the port for the text generation backend. Transport and
// non-2xx failures are returned as errors; callers do not retry at this layer.
type GenerationClient interface {
	Generate(ctx context.Context, messages []Message, params GenerationParams) (Completion, error)
}

// TokenCounter is implemented by clients that can estimate prompt size.
type TokenCounter interface {
	CountTokens(ctx context.Context, model string, messages []Message) (int, error)
}
