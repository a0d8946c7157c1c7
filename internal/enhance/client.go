package enhance

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

const defaultTimeout = 20 * time.Second

const systemPrompt = `You analyse team chat transcripts for cognitive signals.
Respond with a single JSON object and nothing else, using exactly these fields:
{"sentiment": number in [-1,1], "cognitive_patterns": [string],
"bias_risk": number in [0,1], "cognitive_load": number in [0,1],
"bias_indicators": [{"type": string, "confidence": number in [0,1],
"evidence": [string], "severity": "low"|"medium"|"high", "recommendation": string}]}`

// Client talks to a chat-completions compatible endpoint to obtain enhanced
// conversation insight. Any transport, status, or schema failure is returned
// as an error; the caller always falls back to the heuristic record.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// Config configures the enhanced-analysis collaborator.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// NewClient constructs the collaborator client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("enhancer base URL is required")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Analyze submits the conversation text and returns validated insight.
func (c *Client) Analyze(ctx context.Context, conversation string) (*Insight, error) {
	payload := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: conversation},
		},
		Temperature: 0.1,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("enhancer request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("enhancer returned status %d", resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("enhancer error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("enhancer returned no choices")
	}

	insight, err := ParseInsight(parsed.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}
	return insight, nil
}

// ParseInsight decodes and validates the model's JSON payload. Responses
// that fail the schema are treated as collaborator failure.
func ParseInsight(content string) (*Insight, error) {
	trimmed := strings.TrimSpace(content)
	// Tolerate fenced output; models wrap JSON in code blocks routinely.
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")

	var insight Insight
	if err := json.Unmarshal([]byte(strings.TrimSpace(trimmed)), &insight); err != nil {
		return nil, fmt.Errorf("insight is not valid JSON: %w", err)
	}
	if err := insight.Validate(); err != nil {
		return nil, fmt.Errorf("insight failed schema validation: %w", err)
	}
	return &insight, nil
}
