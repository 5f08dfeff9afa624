// Package llm provides the chat-completion backends used to summarize
// finished interviews. A model is addressed as "provider/model_name" so a
// summarization preset can pin its summaries to any supported provider.
package llm

import (
	"context"
	"fmt"
	"strings"
)

// Message is one turn of a completion request. Role is "system", "user" or
// "assistant".
type Message struct {
	Role    string
	Content string
}

// Client is a single-shot chat-completion backend.
type Client interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}

// Option configures a client at construction time.
type Option func(*clientOptions)

type clientOptions struct {
	baseURL string
}

// WithBaseURL points the client at an alternative endpoint.
func WithBaseURL(url string) Option {
	return func(o *clientOptions) {
		o.baseURL = url
	}
}

// ParseModel splits a "provider/model_name" reference into its parts.
func ParseModel(model string) (provider, modelName string, err error) {
	provider, modelName, ok := strings.Cut(model, "/")
	if !ok || provider == "" || modelName == "" {
		return "", "", fmt.Errorf("invalid model reference %q: want provider/model_name", model)
	}
	return provider, modelName, nil
}

// NewClient builds a completion client for the given provider.
func NewClient(provider, apiKey, model string, opts ...Option) (Client, error) {
	options := &clientOptions{}
	for _, opt := range opts {
		opt(options)
	}

	switch provider {
	case "openai":
		return newOpenAIClient(apiKey, model, options)
	case "anthropic":
		return newAnthropicClient(apiKey, model, options)
	case "gemini":
		return newGeminiClient(apiKey, model, options)
	}
	return nil, fmt.Errorf("unsupported llm provider %q: want openai, anthropic or gemini", provider)
}
