package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"alcyxob/fitness-protocols/internal/logger"
)

const (
	defaultOpenAIBaseURL = "https://api.openai.com"
	defaultOpenAIModel   = "gpt-4o-mini"
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    *float32        `json:"temperature,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
}

// OpenAIClient talks to the chat completions endpoint over plain HTTP.
type OpenAIClient struct {
	log            *logger.Logger
	httpClient     *http.Client
	baseURL        string
	apiKey         string
	model          string
	temperature    float32
	maxRetries     int
	initialBackoff time.Duration
}

func NewOpenAIClient(cfg Config, log *logger.Logger) (*OpenAIClient, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	cfg = cfg.withDefaults()
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultOpenAIModel
	}
	return &OpenAIClient{
		log:            log.Component("openai"),
		httpClient:     &http.Client{Timeout: cfg.Timeout},
		baseURL:        baseURL,
		apiKey:         cfg.APIKey,
		model:          model,
		temperature:    cfg.Temperature,
		maxRetries:     cfg.MaxRetries,
		initialBackoff: cfg.InitialBackoff,
	}, nil
}

// Complete asks for a JSON object answer.
func (c *OpenAIClient) Complete(ctx context.Context, system, user string) (string, error) {
	body := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		ResponseFormat: &responseFormat{Type: "json_object"},
	}
	if c.temperature > 0 {
		t := c.temperature
		body.Temperature = &t
	}

	var out chatResponse
	err := withRetries(ctx, c.maxRetries, c.initialBackoff, c.logRetry, func() (http.Header, error) {
		resp, raw, err := c.doOnce(ctx, http.MethodPost, "/v1/chat/completions", body)
		var header http.Header
		if resp != nil {
			header = resp.Header
		}
		if err != nil {
			return header, err
		}
		if err := json.Unmarshal(raw, &out); err != nil {
			return header, fmt.Errorf("openai decode error: %w", err)
		}
		return header, nil
	})
	if err != nil {
		return "", classify(err)
	}
	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		return "", ErrEmptyResponse
	}
	return out.Choices[0].Message.Content, nil
}

func (c *OpenAIClient) logRetry(attempt int, sleep time.Duration, err error) {
	c.log.Warn("OpenAI request retrying",
		"attempt", attempt,
		"max_retries", c.maxRetries,
		"sleep", sleep.String(),
		"error", err.Error(),
	)
}

func (c *OpenAIClient) doOnce(ctx context.Context, method, path string, body any) (*http.Response, []byte, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}

	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return resp, nil, readErr
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, raw, &StatusError{
			Provider:   ProviderOpenAI,
			StatusCode: resp.StatusCode,
			Body:       string(raw),
			RetryAfter: parseRetryAfter(resp.Header),
		}
	}
	return resp, raw, nil
}
