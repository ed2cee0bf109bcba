package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	deskerrors "github.com/kishika1sei/askdesk/internal/errors"
)

// Defaults for the OpenAI chat client.
const (
	DefaultBaseURL           = "https://api.openai.com/v1"
	DefaultModel             = "gpt-4.1-nano"
	DefaultAnswerTemperature = 0.2
	DefaultMaxRetries        = 3
)

// OpenAIConfig configures the OpenAI chat-completions client.
type OpenAIConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	MaxRetries  int
	Timeout     time.Duration
}

// OpenAIClient calls the OpenAI chat-completions API.
type OpenAIClient struct {
	client *http.Client
	config OpenAIConfig
}

var _ Client = (*OpenAIClient)(nil)

// NewOpenAIClient creates a chat client. Missing fields fall back to
// package defaults.
func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 90 * time.Second
	}
	return &OpenAIClient{
		client: &http.Client{},
		config: cfg,
	}
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	Temperature    *float64        `json:"temperature,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type       string           `json:"type"`
	JSONSchema *jsonSchemaParam `json:"json_schema,omitempty"`
}

type jsonSchemaParam struct {
	Name   string          `json:"name"`
	Strict bool            `json:"strict"`
	Schema json.RawMessage `json:"schema"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
			Refusal string `json:"refusal"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// Complete returns the assistant text for the conversation, using the
// configured answer temperature.
func (c *OpenAIClient) Complete(ctx context.Context, messages []Message) (string, error) {
	temp := c.config.Temperature
	content, err := c.doComplete(ctx, chatRequest{
		Model:       c.config.Model,
		Messages:    messages,
		Temperature: &temp,
	})
	if err != nil {
		return "", deskerrors.New(deskerrors.ErrCodeLLMFailed, "completion failed", err)
	}
	return content, nil
}

// CompleteStructured constrains output to schema with temperature 0 so
// classification is reproducible.
func (c *OpenAIClient) CompleteStructured(ctx context.Context, messages []Message, schema JSONSchema) (json.RawMessage, error) {
	zero := 0.0
	content, err := c.doComplete(ctx, chatRequest{
		Model:       c.config.Model,
		Messages:    messages,
		Temperature: &zero,
		ResponseFormat: &responseFormat{
			Type: "json_schema",
			JSONSchema: &jsonSchemaParam{
				Name:   schema.Name,
				Strict: true,
				Schema: schema.Schema,
			},
		},
	})
	if err != nil {
		return nil, deskerrors.New(deskerrors.ErrCodeLLMFailed, "structured completion failed", err)
	}
	if !json.Valid([]byte(content)) {
		return nil, deskerrors.New(deskerrors.ErrCodeRoutingParse,
			"structured completion returned invalid JSON", nil).WithDetail("content", content)
	}
	return json.RawMessage(content), nil
}

func (c *OpenAIClient) doComplete(ctx context.Context, req chatRequest) (string, error) {
	var lastErr error
	for attempt := 0; attempt < c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(500<<attempt) * time.Millisecond
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
			slog.Debug("completion_retry", slog.Int("attempt", attempt+1))
		}

		reqCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
		content, err := c.doRequest(reqCtx, req)
		cancel()
		if err == nil {
			return content, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
	}
	return "", fmt.Errorf("failed after %d attempts: %w", c.config.MaxRetries, lastErr)
}

func (c *OpenAIClient) doRequest(ctx context.Context, chatReq chatRequest) (string, error) {
	body, err := json.Marshal(chatReq)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.config.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("completion failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var result chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	choice := result.Choices[0]
	if choice.Message.Refusal != "" {
		return "", fmt.Errorf("model refused: %s", choice.Message.Refusal)
	}
	return choice.Message.Content, nil
}

// ModelName returns the model identifier.
func (c *OpenAIClient) ModelName() string {
	return c.config.Model
}
