package types

import "fmt"

// Message roles. These are the only two roles the gateway accepts; the system
// prompt travels outside the message list.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the inbound payload for both the blocking and streaming chat
// endpoints. Temperature and MaxTokens are pointers so that an absent field can
// be told apart from an explicit zero; defaults are applied after validation.
type ChatRequest struct {
	Message             string    `json:"message"`
	ConversationHistory []Message `json:"conversation_history,omitempty"`
	SystemPrompt        string    `json:"system_prompt,omitempty"`
	ModelID             string    `json:"model_id,omitempty"`
	Temperature         *float64  `json:"temperature,omitempty"`
	MaxTokens           *int      `json:"max_tokens,omitempty"`
}

// Validate rejects out-of-range parameters instead of clamping them.
func (r *ChatRequest) Validate() error {
	if r.Message == "" {
		return fmt.Errorf("message is required")
	}
	if r.Temperature != nil && (*r.Temperature < 0 || *r.Temperature > 1) {
		return fmt.Errorf("temperature must be between 0 and 1, got %g", *r.Temperature)
	}
	if r.MaxTokens != nil && (*r.MaxTokens < 1 || *r.MaxTokens > 4096) {
		return fmt.Errorf("max_tokens must be between 1 and 4096, got %d", *r.MaxTokens)
	}
	for i, m := range r.ConversationHistory {
		if m.Role != RoleUser && m.Role != RoleAssistant {
			return fmt.Errorf("conversation_history[%d]: unknown role %q", i, m.Role)
		}
	}
	return nil
}

type ChatResponse struct {
	Response string `json:"response"`
	ModelID  string `json:"model_id"`
}

// Usage holds the token counters a provider reports for one generation.
// Providers that do not report usage leave it zero.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}
