// Package gemini provides an alternative gateway backend for deployments that
// route scoring traffic to the Gemini API instead of a local Ollama endpoint.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/heartmatch/heartmatch/internal/gateway"
	"github.com/heartmatch/heartmatch/internal/utils"
)

const (
	defaultModel      = "gemini-2.5-pro"
	defaultMaxRetries = 2
	retryBackoff      = 2 * time.Second
)

// Generator wraps the Google GenAI client behind the gateway.Generator
// interface. Unlike the Ollama client it serves a single configured model, so
// the fallback list degrades to retries against that model.
type Generator struct {
	client     *genai.Client
	model      string
	maxRetries int
	logger     *zap.Logger
}

// NewGenerator creates a Generator configured for the Gemini API backend.
func NewGenerator(ctx context.Context, apiKey, model string, maxRetries int, logger *zap.Logger) (*Generator, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	if model = strings.TrimSpace(model); model == "" {
		model = defaultModel
	}
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Generator{client: client, model: model, maxRetries: maxRetries, logger: logger}, nil
}

// GenerateWithFallback satisfies gateway.Generator. The provided model list is
// ignored; the configured Gemini model is retried up to maxRetries times.
func (g *Generator) GenerateWithFallback(ctx context.Context, prompt string, _ []string) (*gateway.Result, error) {
	attempts := make([]gateway.Attempt, 0, g.maxRetries)

	for i := 0; i < g.maxRetries; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if i > 0 {
			if err := utils.WaitFor(ctx, retryBackoff); err != nil {
				return nil, err
			}
		}

		text, err := g.generate(ctx, prompt)
		if err == nil {
			return &gateway.Result{Text: text, Model: g.model}, nil
		}

		outcome := gateway.OutcomeUnreachable
		if errors.Is(err, context.DeadlineExceeded) {
			outcome = gateway.OutcomeTimeout
		}
		attempts = append(attempts, gateway.Attempt{Model: g.model, Outcome: outcome, Err: err})

		g.logger.Warn("gemini attempt failed",
			zap.Int("attempt", i+1),
			zap.Int("max_retries", g.maxRetries),
			zap.Error(err),
		)
	}

	return nil, &gateway.UnavailableError{Attempts: attempts}
}

// Model returns the configured model name.
func (g *Generator) Model() string {
	if g == nil {
		return ""
	}
	return g.model
}

func (g *Generator) generate(ctx context.Context, prompt string) (string, error) {
	if g == nil || g.client == nil {
		return "", errors.New("gemini generator is not initialized")
	}

	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", errors.New("prompt must not be empty")
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(text)
		}
	}

	output := strings.TrimSpace(builder.String())
	if output == "" {
		return "", errors.New("gemini api returned empty response")
	}

	return output, nil
}
