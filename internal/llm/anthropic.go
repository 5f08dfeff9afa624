package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// maxSummaryTokens caps a single completion. Generous enough for a detailed
// summary of an hour-long interview transcript.
const maxSummaryTokens = 8192

// anthropicClient adapts the Anthropic messages API. Unlike the other
// backends, Anthropic takes the system prompt as a top-level request field
// rather than a message role, so Complete lifts it out of the turn list.
type anthropicClient struct {
	client anthropic.Client
	model  string
}

func newAnthropicClient(apiKey, model string, opts *clientOptions) (*anthropicClient, error) {
	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if opts.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.baseURL))
	}
	return &anthropicClient{client: anthropic.NewClient(reqOpts...), model: model}, nil
}

func (c *anthropicClient) Complete(ctx context.Context, messages []Message) (string, error) {
	var system []anthropic.TextBlockParam
	var turns []anthropic.MessageParam

	for _, m := range messages {
		switch m.Role {
		case "system":
			system = append(system, anthropic.TextBlockParam{Text: m.Content})
		case "user":
			turns = append(turns, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		case "assistant":
			turns = append(turns, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		}
	}

	resp, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: maxSummaryTokens,
		System:    system,
		Messages:  turns,
	})
	if err != nil {
		return "", fmt.Errorf("anthropic completion: %w", err)
	}

	var b strings.Builder
	for i := range resp.Content {
		if block := &resp.Content[i]; block.Type == "text" {
			b.WriteString(block.Text)
		}
	}

	out := strings.TrimSpace(b.String())
	if out == "" {
		return "", fmt.Errorf("anthropic: empty response content")
	}
	return out, nil
}
