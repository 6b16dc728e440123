package model

// PromptProfile is a named system/user prompt pair with default generation parameters.
// Nil Temperature and zero MaxOutputTokens fall back to the configured defaults.
type PromptProfile struct {
	ID                 string   `json:"id" yaml:"id"`
	Name               string   `json:"name" yaml:"name"`
	SystemPrompt       string   `json:"system_prompt" yaml:"system_prompt"`
	UserPromptTemplate string   `json:"user_prompt_template" yaml:"user_prompt_template"`
	Model              string   `json:"model,omitempty" yaml:"model"`
	Temperature        *float64 `json:"temperature,omitempty" yaml:"temperature"`
	MaxOutputTokens    int      `json:"max_output_tokens,omitempty" yaml:"max_output_tokens"`
}
