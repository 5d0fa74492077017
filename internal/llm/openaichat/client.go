// Package openaichat implements triage.Backend against any
// OpenAI-compatible chat completions endpoint (OpenAI, DeepSeek, Qwen,
// local gateways). The base URL and key are configurable so providers can
// be swapped without touching orchestration.
package openaichat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/linnemanlabs/warden/internal/triage"
)

const httpTimeout = 120 * time.Second

// Client implements the Backend interface for chat completion APIs.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// New creates a chat completions client. baseURL is the API root, e.g.
// https://api.deepseek.com or https://api.openai.com/v1.
func New(apiKey, baseURL string) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: httpTimeout,
		},
	}
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type request struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type response struct {
	Choices []struct {
		Message message `json:"message"`
	} `json:"choices"`
}

// Classify sends the decision policy and brief as a two-message exchange
// and returns the model's raw text verbatim.
func (c *Client) Classify(ctx context.Context, req *triage.ClassifyRequest) (string, error) {
	body, err := json.Marshal(request{
		Model: req.Model,
		Messages: []message{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.Prompt},
		},
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq) //nolint:gosec // G704: baseURL is from trusted config, not user input
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 5<<20)) // 5 MB
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("chat api error %d: %s", resp.StatusCode, string(respBody))
	}

	var out response
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("chat api returned no choices")
	}

	return out.Choices[0].Message.Content, nil
}
