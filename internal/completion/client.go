// Package completion provides the language-completion service client used by
// the routing planner and the merge engine.
package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client is the interface for single completion calls. Callers own the model
// fallback policy: on failure they retry with the next model profile.
type Client interface {
	Complete(ctx context.Context, prompt, model string) (string, error)
}

type completeRequest struct {
	Prompt string `json:"prompt"`
	Model  string `json:"model"`
}

type completeResponse struct {
	Text string `json:"text"`
}

// HTTPClient talks to the completion service over HTTP JSON.
type HTTPClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPClient creates a client for the completion service at baseURL.
func NewHTTPClient(baseURL, apiKey string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

// Complete sends one prompt to the service and returns the raw response text.
func (c *HTTPClient) Complete(ctx context.Context, prompt, model string) (string, error) {
	body, err := json.Marshal(completeRequest{Prompt: prompt, Model: model})
	if err != nil {
		return "", fmt.Errorf("completion: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/complete", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("completion: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("completion: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Read a bounded slice of the body for the error message.
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("completion: model %s returned status %d: %s", model, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var out completeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("completion: decode response: %w", err)
	}
	return out.Text, nil
}

// Verify HTTPClient satisfies Client at compile time.
var _ Client = (*HTTPClient)(nil)

// StripFences removes a surrounding markdown code fence from a completion
// response, with or without a language tag.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// Drop the language tag on the opening fence line.
	if i := strings.Index(s, "\n"); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
