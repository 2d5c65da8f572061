// Package generator holds the clients for the external text generation services.
// Every client satisfies protocol.Generator and reports failures through the
// sentinels in errors.go.
package generator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"alcyxob/fitness-protocols/internal/logger"
	"alcyxob/fitness-protocols/internal/protocol"
)

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Config selects and tunes a provider.
type Config struct {
	Provider       string
	APIKey         string
	Model          string
	BaseURL        string
	Timeout        time.Duration
	MaxRetries     int
	Temperature    float32
	InitialBackoff time.Duration
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = 90 * time.Second
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = time.Second
	}
	return c
}

// New builds the client named by cfg.Provider.
func New(ctx context.Context, cfg Config, log *logger.Logger) (protocol.Generator, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("generator api key is required")
	}
	switch strings.ToLower(cfg.Provider) {
	case ProviderOpenAI, "":
		c, err := NewOpenAIClient(cfg, log)
		if err != nil {
			return nil, err
		}
		return c, nil
	case ProviderGemini:
		c, err := NewGeminiClient(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown generator provider %q", cfg.Provider)
	}
}
