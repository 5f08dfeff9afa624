package llm

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// geminiClient adapts the Gemini generate-content API. Gemini wants the
// system prompt as a standalone instruction and names the assistant role
// "model", so the shared message list is remapped before each request.
type geminiClient struct {
	client *genai.Client
	model  string
}

func newGeminiClient(apiKey, model string, opts *clientOptions) (*geminiClient, error) {
	cfg := &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI}
	if opts.baseURL != "" {
		cfg.HTTPOptions.BaseURL = opts.baseURL
	}

	client, err := genai.NewClient(context.Background(), cfg)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &geminiClient{client: client, model: model}, nil
}

// geminiContents splits the shared message list into the system instruction
// and the user/model conversation turns.
func geminiContents(messages []Message) (instruction *genai.Content, turns []*genai.Content) {
	for _, m := range messages {
		switch m.Role {
		case "system":
			instruction = &genai.Content{Parts: []*genai.Part{{Text: m.Content}}}
		case "user":
			turns = append(turns, &genai.Content{Role: "user", Parts: []*genai.Part{{Text: m.Content}}})
		case "assistant":
			turns = append(turns, &genai.Content{Role: "model", Parts: []*genai.Part{{Text: m.Content}}})
		}
	}
	return instruction, turns
}

func (c *geminiClient) Complete(ctx context.Context, messages []Message) (string, error) {
	instruction, turns := geminiContents(messages)

	hasUserTurn := false
	for _, m := range messages {
		if m.Role == "user" {
			hasUserTurn = true
			break
		}
	}
	if !hasUserTurn {
		return "", fmt.Errorf("gemini: no user message provided")
	}

	result, err := c.client.Models.GenerateContent(ctx, c.model, turns, &genai.GenerateContentConfig{
		SystemInstruction: instruction,
	})
	if err != nil {
		return "", fmt.Errorf("gemini completion: %w", err)
	}

	text := strings.TrimSpace(result.Text())
	if text == "" {
		return "", fmt.Errorf("gemini: empty response text")
	}
	return text, nil
}
