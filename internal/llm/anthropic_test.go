package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestAnthropicCompleteLiftsSystemPrompt(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Fatalf("unexpected path %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")

		var req struct {
			Model     string `json:"model"`
			MaxTokens int64  `json:"max_tokens"`
			System    []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"system"`
			Messages []struct {
				Role    string `json:"role"`
				Content []struct {
					Type string `json:"type"`
					Text string `json:"text"`
				} `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}

		if req.Model != "claude-sonnet-4-20250514" {
			t.Fatalf("unexpected model %q", req.Model)
		}
		if len(req.System) != 1 || req.System[0].Text != "Je vat sollicitatiegesprekken samen." {
			t.Fatalf("expected system prompt in top-level system field, got %#v", req.System)
		}
		if len(req.Messages) != 2 {
			t.Fatalf("expected 2 chat messages, got %d", len(req.Messages))
		}
		if req.Messages[0].Role != "user" || req.Messages[1].Role != "assistant" {
			t.Fatalf("unexpected chat roles: %#v", req.Messages)
		}

		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":    "msg_1",
			"type":  "message",
			"role":  "assistant",
			"model": "claude-sonnet-4-20250514",
			"content": []map[string]any{
				{"type": "text", "text": " ## Samenvatting "},
				{"type": "text", "text": "\n- Sterke communicatieve vaardigheden"},
			},
			"stop_reason":   "end_turn",
			"stop_sequence": "",
			"usage": map[string]any{
				"input_tokens":  10,
				"output_tokens": 2,
			},
		})
	}))
	defer server.Close()

	client, err := newAnthropicClient("test-key", "claude-sonnet-4-20250514", &clientOptions{baseURL: server.URL})
	if err != nil {
		t.Fatalf("newAnthropicClient failed: %v", err)
	}

	got, err := client.Complete(context.Background(), []Message{
		{Role: "system", Content: "Je vat sollicitatiegesprekken samen."},
		{Role: "user", Content: "Vat dit gesprek samen."},
		{Role: "assistant", Content: "Een moment."},
	})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if got != "## Samenvatting \n- Sterke communicatieve vaardigheden" {
		t.Fatalf("expected combined trimmed text, got %q", got)
	}
}

func TestAnthropicCompleteEmptyContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":            "msg_1",
			"type":          "message",
			"role":          "assistant",
			"model":         "claude-sonnet-4-20250514",
			"content":       []map[string]any{},
			"stop_reason":   "end_turn",
			"stop_sequence": "",
			"usage": map[string]any{
				"input_tokens":  10,
				"output_tokens": 0,
			},
		})
	}))
	defer server.Close()

	client, err := newAnthropicClient("test-key", "claude-sonnet-4-20250514", &clientOptions{baseURL: server.URL})
	if err != nil {
		t.Fatalf("newAnthropicClient failed: %v", err)
	}

	_, err = client.Complete(context.Background(), []Message{{Role: "user", Content: "Vat samen."}})
	if err == nil {
		t.Fatal("expected error for empty content, got nil")
	}
	if !strings.Contains(err.Error(), "empty response") {
		t.Fatalf("expected 'empty response' in error, got %q", err.Error())
	}
}

func TestAnthropicCompleteSetsTokenCeiling(t *testing.T) {
	var gotMaxTokens int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		var req struct {
			MaxTokens int64 `json:"max_tokens"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		gotMaxTokens = req.MaxTokens

		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":    "msg_1",
			"type":  "message",
			"role":  "assistant",
			"model": "claude-sonnet-4-20250514",
			"content": []map[string]any{
				{"type": "text", "text": "Samenvatting volgt."},
			},
			"stop_reason":   "end_turn",
			"stop_sequence": "",
			"usage": map[string]any{
				"input_tokens":  10,
				"output_tokens": 1,
			},
		})
	}))
	defer server.Close()

	client, err := newAnthropicClient("test-key", "claude-sonnet-4-20250514", &clientOptions{baseURL: server.URL})
	if err != nil {
		t.Fatalf("newAnthropicClient failed: %v", err)
	}

	_, err = client.Complete(context.Background(), []Message{{Role: "user", Content: "Vat samen."}})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if gotMaxTokens != maxSummaryTokens {
		t.Fatalf("expected max_tokens %d, got %d", maxSummaryTokens, gotMaxTokens)
	}
}
