// CLAUDE:SUMMARY OpenAI-compatible chat-completions client implementing the Generator interface.
package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// ChatConfig configures the chat-completions client.
type ChatConfig struct {
	// BaseURL of an OpenAI-compatible server (without /v1/chat/completions).
	BaseURL string
	// Model name to request.
	Model string
	// APIKey sent as a bearer token when non-empty.
	APIKey string
	// Timeout per call. Default: 60s.
	Timeout time.Duration
	// Temperature for sampling. Extraction wants determinism; default 0.
	Temperature float32
}

func (c *ChatConfig) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
}

// ChatClient calls an OpenAI-compatible chat-completions endpoint. It
// implements Generator.
type ChatClient struct {
	config ChatConfig
	client *http.Client
}

// NewChatClient creates a ChatClient. Returns nil when no BaseURL is
// configured; the adapter treats a nil Generator as "always default".
func NewChatClient(cfg ChatConfig) *ChatClient {
	if cfg.BaseURL == "" {
		return nil
	}
	cfg.defaults()
	return &ChatClient{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float32       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// Generate sends one chat completion and returns the raw text of the first
// choice.
func (c *ChatClient) Generate(ctx context.Context, systemPrompt, userPrompt string, maxTokens int) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.config.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		MaxTokens:   maxTokens,
		Temperature: c.config.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("chat: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.config.BaseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("chat: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("chat: http %d", resp.StatusCode)
	}

	var cr chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return "", fmt.Errorf("chat: decode: %w", err)
	}
	if len(cr.Choices) == 0 {
		return "", fmt.Errorf("chat: empty choices")
	}
	return cr.Choices[0].Message.Content, nil
}
