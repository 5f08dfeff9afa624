package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/intervox/intervox/internal/storage"
)

// interviewSystemAdditions is appended to every project's system prompt so
// the voice model behaves as a Dutch interviewer regardless of how the
// project prompt is written.
const interviewSystemAdditions = `
INTERVIEW INSTRUCTIES:
- Je voert een interview via spraak
- Luister actief en stel doorvragen waar relevant
- Houd je antwoorden beknopt (2-3 zinnen per beurt)
- Wees empathisch en geinteresseerd
- Tel het aantal vragen dat je stelt
- Als je het maximum aantal vragen hebt gesteld, rond dan netjes af
- Gebruik het afsluitbericht dat is geconfigureerd wanneer je het interview afsluit
- Spreek duidelijk en in een natuurlijk tempo
- Wacht op het antwoord van de deelnemer voordat je verdergaat

TAAL INSTRUCTIES:
- Spreek en communiceer uitsluitend in het Nederlands
- De deelnemer spreekt in het Nederlands

TRANSCRIPTIE INSTRUCTIES:
- De deelnemer spreekt in het Nederlands
- Alle transcripties moeten in het Nederlands worden weergegeven
- Negeer achtergrondgeluid en niet-Nederlandse audio`

const (
	DefaultWelcomeMessage = "Welkom bij dit interview. Ik stel je graag een aantal vragen."
	DefaultClosingMessage = "Bedankt voor je deelname aan dit interview. Fijne dag verder!"
)

// BuildSystemPrompt folds the project's settings and the fixed interview
// instructions into one prompt for the voice model.
func BuildSystemPrompt(cfg storage.ProjectConfig) string {
	language := cfg.Language
	if language == "" || language == "nl" {
		language = "Nederlands"
	}

	welcome := cfg.WelcomeMessage
	if welcome == "" {
		welcome = "Welkom bij dit interview."
	}
	closing := cfg.ClosingMessage
	if closing == "" {
		closing = "Bedankt voor je deelname aan dit interview."
	}

	return fmt.Sprintf(`%s

Tone of voice: %s
Maximaal aantal vragen: %d
Taal: %s

Welkomstbericht: %s
Afsluitbericht: %s
%s`, cfg.SystemPrompt, cfg.ToneOfVoice, cfg.MaxQuestions, language, welcome, closing, interviewSystemAdditions)
}

// TokenIssuer requests short-lived client secrets from the OpenAI realtime
// sessions endpoint.
type TokenIssuer struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

func NewTokenIssuer(apiKey, model, baseURL string) *TokenIssuer {
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}
	return &TokenIssuer{
		apiKey:     apiKey,
		model:      model,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

func (t *TokenIssuer) Issue(ctx context.Context, voice string) (string, error) {
	if t.apiKey == "" {
		return "", fmt.Errorf("openai api key not configured")
	}

	payload, err := json.Marshal(map[string]string{
		"model": t.model,
		"voice": voice,
	})
	if err != nil {
		return "", fmt.Errorf("marshal token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/v1/realtime/sessions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+t.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request ephemeral token: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("token request failed with status %d: %s", resp.StatusCode, body)
	}

	var parsed struct {
		ClientSecret json.RawMessage `json:"client_secret"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}

	// client_secret is either an object with a value field or a bare string.
	var secret struct {
		Value string `json:"value"`
	}
	if err := json.Unmarshal(parsed.ClientSecret, &secret); err == nil && secret.Value != "" {
		return secret.Value, nil
	}
	var plain string
	if err := json.Unmarshal(parsed.ClientSecret, &plain); err == nil && plain != "" {
		return plain, nil
	}

	return "", fmt.Errorf("token response missing client secret")
}
