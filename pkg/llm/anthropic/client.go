package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/collectiq/agentmem-go/pkg/llm"
)

// Client is an Anthropic language model client.
// It implements the llm.Provider interface on the Anthropic Messages API.
// System messages are separated out of the message list, conforming to the
// Messages API specification.
type Client struct {
	client  *http.Client
	apiKey  string
	model   string
	baseURL string
}

// Config is the configuration for the Anthropic provider.
// APIKey: Anthropic API key (required)
// Model: Model name to use, defaults to "claude-3-5-sonnet-20240620"
// BaseURL: API base URL, defaults to "https://api.anthropic.com"
// HTTPClient: Custom HTTP client, if nil uses a default client (120 seconds timeout)
type Config struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
}

// pricing is USD per 1K tokens, prompt and completion respectively.
var pricing = map[string][2]float64{
	"claude-3-5-sonnet-20240620": {0.003, 0.015},
	"claude-3-opus-20240229":     {0.015, 0.075},
	"claude-3-haiku-20240307":    {0.00025, 0.00125},
}

// NewClient creates a new Anthropic client.
func NewClient(cfg *Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("API key is required")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}

	model := cfg.Model
	if model == "" {
		model = "claude-3-5-sonnet-20240620"
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{
			Timeout: 120 * time.Second,
		}
	}

	return &Client{
		client:  client,
		apiKey:  cfg.APIKey,
		model:   model,
		baseURL: baseURL,
	}, nil
}

// Complete generates a completion from the conversation.
// The Messages API requires system messages to be passed separately, not
// in the messages array; they are pulled out here. There is no native
// JSON response mode, so the JSON option becomes a system instruction.
func (c *Client) Complete(ctx context.Context, messages []llm.Message, opts ...llm.CompletionOption) (*llm.Completion, error) {
	options := llm.ApplyCompletionOptions(opts)

	var systemMessage string
	var filteredMessages []map[string]string

	for _, msg := range messages {
		if msg.Role == llm.RoleSystem {
			systemMessage = msg.Content
		} else {
			filteredMessages = append(filteredMessages, map[string]string{
				"role":    msg.Role,
				"content": msg.Content,
			})
		}
	}

	if options.JSONResponse {
		if systemMessage != "" {
			systemMessage += "\n\n"
		}
		systemMessage += "Respond with a single valid JSON object and nothing else."
	}

	reqBody := map[string]interface{}{
		"model":       c.model,
		"max_tokens":  options.MaxTokens,
		"temperature": options.Temperature,
		"top_p":       options.TopP,
		"messages":    filteredMessages,
	}
	if systemMessage != "" {
		reqBody["system"] = systemMessage
	}
	if len(options.Stop) > 0 {
		reqBody["stop_sequences"] = options.Stop
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/messages", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var response struct {
		Model   string `json:"model"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		Usage struct {
			InputTokens  int `json:"input_tokens"`
			OutputTokens int `json:"output_tokens"`
		} `json:"usage"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(response.Content) == 0 {
		return nil, errors.New("completion failed: no content returned from Anthropic API")
	}

	usage := llm.Usage{
		PromptTokens:     response.Usage.InputTokens,
		CompletionTokens: response.Usage.OutputTokens,
		TotalTokens:      response.Usage.InputTokens + response.Usage.OutputTokens,
	}

	model := response.Model
	if model == "" {
		model = c.model
	}

	return &llm.Completion{
		Content: response.Content[0].Text,
		Model:   model,
		Usage:   usage,
		Cost:    estimateCost(c.model, usage),
	}, nil
}

// Close closes the client connection.
// The HTTP client does not require explicit closing; this method is
// retained for interface compatibility.
func (c *Client) Close() error {
	return nil
}

func estimateCost(model string, usage llm.Usage) float64 {
	rates, ok := pricing[model]
	if !ok {
		return 0
	}
	return float64(usage.PromptTokens)/1000*rates[0] +
		float64(usage.CompletionTokens)/1000*rates[1]
}
