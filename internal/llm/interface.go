package llm

import "context"

// Message roles understood by every provider.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Provider is a chat-completion backend. Implementations translate the
// neutral request into their vendor API and back.
type Provider interface {
	Name() string
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// ChatRequest is a provider-neutral chat completion request.
type ChatRequest struct {
	SystemPrompt string
	Messages     []Message
	MaxTokens    int
	Temperature  float64
	// JSONMode asks the provider for a JSON object response. Providers
	// without native support fall back to prompt instruction.
	JSONMode bool
}

type Message struct {
	Role    string
	Content string
}

// ChatResponse carries the completion text plus accounting metadata.
type ChatResponse struct {
	Content      string
	Usage        Usage
	FinishReason string
}

type Usage struct {
	InputTokens  int
	OutputTokens int
}
