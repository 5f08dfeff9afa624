package realtime

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const (
	// DefaultBaseURL is the remote realtime endpoint used for SDP exchange.
	DefaultBaseURL = "https://api.openai.com/v1/realtime"

	// DefaultModel is the realtime model negotiated by default.
	DefaultModel = "gpt-4o-realtime-preview-2024-12-17"
)

// negotiate posts a local SDP offer to the realtime endpoint and returns the
// remote answer. The token is a short-lived session credential, not the
// account API key.
func negotiate(ctx context.Context, client *http.Client, baseURL, model, token, offerSDP string) (string, error) {
	endpoint := fmt.Sprintf("%s?model=%s", baseURL, url.QueryEscape(model))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(offerSDP))
	if err != nil {
		return "", fmt.Errorf("building negotiation request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/sdp")

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("posting offer: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("reading negotiation response: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", &NegotiationError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return string(body), nil
}
