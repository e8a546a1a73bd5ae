package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrNoAPIKey is returned when a hosted provider has no key configured.
var ErrNoAPIKey = errors.New("llm: api key not configured")

// Completer is the chat-completion contract used by the assistant and the classifier.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)
}

// Message is one chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest describes one completion call. Zero MaxTokens leaves the
// provider default; zero Timeout uses the provider timeout.
type CompletionRequest struct {
	Messages    []Message
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// Usage carries token accounting when the backend reports it.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// CompletionResponse is the assistant text plus optional usage.
type CompletionResponse struct {
	Content string
	Usage   *Usage
}

// Options configures New.
type Options struct {
	Provider string
	BaseURL  string
	APIKey   string
	Model    string
	Timeout  time.Duration
}

// DefaultTimeout applies when Options.Timeout is zero.
const DefaultTimeout = 30 * time.Second

// New builds the provider named in opts.
func New(opts Options) (Completer, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	switch strings.ToLower(strings.TrimSpace(opts.Provider)) {
	case "", "openai", "lmstudio", "local":
		return NewOpenAIProvider(opts.BaseURL, opts.APIKey, opts.Model, opts.Timeout), nil
	case "gemini":
		return NewGeminiProvider(opts.APIKey, opts.Model, opts.Timeout), nil
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", opts.Provider)
	}
}

func withTimeout(ctx context.Context, req, fallback time.Duration) (context.Context, context.CancelFunc) {
	d := req
	if d <= 0 {
		d = fallback
	}
	if d <= 0 {
		d = DefaultTimeout
	}
	return context.WithTimeout(ctx, d)
}
