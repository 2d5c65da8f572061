package generator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"alcyxob/fitness-protocols/internal/logger"
)

const defaultGeminiModel = "gemini-2.5-flash"

// GeminiClient generates through the Gemini API using the genai SDK.
type GeminiClient struct {
	log            *logger.Logger
	client         *genai.Client
	model          string
	temperature    float32
	timeout        time.Duration
	maxRetries     int
	initialBackoff time.Duration
}

func NewGeminiClient(ctx context.Context, cfg Config, log *logger.Logger) (*GeminiClient, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	cfg = cfg.withDefaults()
	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		clientCfg.HTTPOptions.BaseURL = base
	}
	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultGeminiModel
	}
	return &GeminiClient{
		log:            log.Component("gemini"),
		client:         client,
		model:          model,
		temperature:    cfg.Temperature,
		timeout:        cfg.Timeout,
		maxRetries:     cfg.MaxRetries,
		initialBackoff: cfg.InitialBackoff,
	}, nil
}

func (c *GeminiClient) Complete(ctx context.Context, system, user string) (string, error) {
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		ResponseMIMEType:  "application/json",
	}
	if c.temperature > 0 {
		config.Temperature = genai.Ptr(c.temperature)
	}
	contents := []*genai.Content{genai.NewContentFromText(user, genai.RoleUser)}

	var text string
	err := withRetries(ctx, c.maxRetries, c.initialBackoff, c.logRetry, func() (http.Header, error) {
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()
		resp, err := c.client.Models.GenerateContent(callCtx, c.model, contents, config)
		if err != nil {
			return nil, asStatusError(err)
		}
		text = resp.Text()
		return nil, nil
	})
	if err != nil {
		return "", classify(err)
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

func (c *GeminiClient) logRetry(attempt int, sleep time.Duration, err error) {
	c.log.Warn("Gemini request retrying",
		"attempt", attempt,
		"max_retries", c.maxRetries,
		"sleep", sleep.String(),
		"error", err.Error(),
	)
}

// asStatusError normalises SDK errors so classify treats both providers alike.
func asStatusError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &StatusError{
			Provider:   ProviderGemini,
			StatusCode: apiErr.Code,
			Body:       strings.TrimSpace(apiErr.Status + " " + apiErr.Message),
			RetryAfter: retryDelayOf(apiErr.Details),
		}
	}
	return err
}

// retryDelayOf reads the google.rpc.RetryInfo detail, e.g. {"retryDelay": "30s"}.
func retryDelayOf(details []map[string]any) time.Duration {
	for _, d := range details {
		typ, _ := d["@type"].(string)
		if !strings.HasSuffix(typ, "google.rpc.RetryInfo") {
			continue
		}
		raw, _ := d["retryDelay"].(string)
		if delay, err := time.ParseDuration(raw); err == nil && delay > 0 {
			return delay
		}
	}
	return 0
}
