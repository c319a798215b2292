package analyze

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	openAIEndpoint      = "https://api.openai.com/v1/chat/completions"
	defaultModel        = "gpt-4o-mini"
	defaultSystemPrompt = "You are a legal issue spotter. Respond with JSON containing `summary` and `issues` array."
)

// OpenAIConfig configures the OpenAI-backed analyzer.
type OpenAIConfig struct {
	APIKey         string
	Model          string
	MaxTokens      int
	RequestTimeout time.Duration
	BaseURL        string // override for tests
}

// OpenAIAnalyzer calls the OpenAI chat completions API with a JSON
// response format and decodes the structured findings.
type OpenAIAnalyzer struct {
	cfg    OpenAIConfig
	client *http.Client
}

// NewOpenAIAnalyzer creates an OpenAI analyzer. The API key is required.
func NewOpenAIAnalyzer(cfg OpenAIConfig) (*OpenAIAnalyzer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai analyzer requires an API key")
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = openAIEndpoint
	}
	return &OpenAIAnalyzer{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.RequestTimeout},
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	ResponseFormat struct {
		Type string `json:"type"`
	} `json:"response_format"`
	MaxTokens int `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Analyze sends the chunk text to the chat completions endpoint and
// decodes the JSON findings from the first choice.
func (a *OpenAIAnalyzer) Analyze(ctx context.Context, text string, index int, opts Options) (*Findings, error) {
	systemPrompt := opts.Prompt
	if systemPrompt == "" {
		systemPrompt = defaultSystemPrompt
	}
	model := opts.Model
	if model == "" {
		model = a.cfg.Model
	}
	maxTokens := opts.MaxTokens
	if maxTokens == 0 {
		maxTokens = a.cfg.MaxTokens
	}

	reqBody := chatRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: text},
		},
		MaxTokens: maxTokens,
	}
	reqBody.ResponseFormat.Type = "json_object"

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.BaseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+a.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chunk %d: call provider: %w", index, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("chunk %d: read response: %w", index, err)
	}

	var decoded chatResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("chunk %d: decode response: %w", index, err)
	}

	if resp.StatusCode != http.StatusOK {
		if decoded.Error != nil && decoded.Error.Message != "" {
			return nil, fmt.Errorf("chunk %d: provider error: %s", index, decoded.Error.Message)
		}
		return nil, fmt.Errorf("chunk %d: provider returned status %d", index, resp.StatusCode)
	}
	if len(decoded.Choices) == 0 {
		return nil, fmt.Errorf("chunk %d: provider returned no choices", index)
	}

	findings := &Findings{}
	if err := json.Unmarshal([]byte(decoded.Choices[0].Message.Content), findings); err != nil {
		return nil, fmt.Errorf("chunk %d: decode findings: %w", index, err)
	}
	return findings, nil
}
