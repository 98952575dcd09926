package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/heartmatch/heartmatch/internal/utils"
)

const (
	// DefaultEndpoint is the standard local Ollama address.
	DefaultEndpoint = "http://127.0.0.1:11434"

	generatePath = "/api/generate"

	defaultTimeout     = 120 * time.Second
	defaultTemperature = 0.7
	defaultNumPredict  = 2000
	defaultMaxLogLen   = 200
)

// DefaultModels is the built-in fallback chain, largest model first.
var DefaultModels = []string{
	"qwen3-coder:480b-cloud",
	"gpt-oss:120b-cloud",
	"qwen2.5:72b",
}

// errMalformed marks a reachable endpoint that returned an unusable HTTP
// response. The model is skipped without retrying it.
var errMalformed = errors.New("malformed response")

// Config holds everything an Ollama client needs. It is passed explicitly so
// gateways with different configurations can coexist in tests.
type Config struct {
	// Endpoint is the base URL of the inference endpoint.
	Endpoint string
	// Timeout bounds each model attempt individually, not the whole chain.
	Timeout time.Duration
	// Temperature and NumPredict are forwarded in the request options block.
	Temperature float64
	NumPredict  int
	// APIKey is an optional cloud passthrough key included in the payload.
	APIKey string
	// MaxLogLength limits prompt/response previews in debug logs.
	MaxLogLength int
}

func (c Config) withDefaults() Config {
	if strings.TrimSpace(c.Endpoint) == "" {
		c.Endpoint = DefaultEndpoint
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.Temperature <= 0 {
		c.Temperature = defaultTemperature
	}
	if c.NumPredict <= 0 {
		c.NumPredict = defaultNumPredict
	}
	if c.MaxLogLength <= 0 {
		c.MaxLogLength = defaultMaxLogLen
	}
	return c
}

// Client talks to a local Ollama endpoint over HTTP. It keeps no mutable state
// beyond its configuration, so one client is safe for concurrent use.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a gateway client for the configured endpoint.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.withDefaults()
	return &Client{
		cfg: cfg,
		// Per-attempt deadlines come from the request context; the
		// transport itself stays unbounded.
		httpClient: &http.Client{},
		logger:     logger,
	}
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
	APIKey  string          `json:"api_key,omitempty"`
}

type generateOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict"`
}

// generateResponse decodes the fields we need; unknown fields are tolerated.
type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Generate sends the prompt to a single model and returns the raw response
// text. The configured timeout applies to this one attempt.
func (c *Client) Generate(ctx context.Context, prompt, model string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", errors.New("prompt must not be empty")
	}
	if strings.TrimSpace(model) == "" {
		return "", errors.New("model name must not be empty")
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	payload := generateRequest{
		Model:  model,
		Prompt: prompt,
		Stream: false,
		Options: generateOptions{
			Temperature: c.cfg.Temperature,
			NumPredict:  c.cfg.NumPredict,
		},
		APIKey: c.cfg.APIKey,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal generate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint+generatePath, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	c.logger.Debug("ollama generate request",
		zap.String("model", model),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, c.cfg.MaxLogLength)),
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("call ollama: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: ollama returned status %d", errMalformed, resp.StatusCode)
	}

	var decoded generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("%w: decode ollama response: %v", errMalformed, err)
	}

	c.logger.Debug("ollama generate response",
		zap.String("model", model),
		zap.Int("response_length", utf8.RuneCountInString(decoded.Response)),
		zap.String("response_preview", utils.TruncateForLog(decoded.Response, c.cfg.MaxLogLength)),
	)

	return decoded.Response, nil
}

// GenerateWithFallback tries the models in priority order. Connection failures
// and timeouts move to the next model, as do malformed HTTP responses. Only
// when every model has failed does it return an UnavailableError.
func (c *Client) GenerateWithFallback(ctx context.Context, prompt string, models []string) (*Result, error) {
	if len(models) == 0 {
		models = DefaultModels
	}

	attempts := make([]Attempt, 0, len(models))
	for _, model := range models {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		text, err := c.Generate(ctx, prompt, model)
		if err == nil {
			return &Result{Text: text, Model: model}, nil
		}

		outcome := classify(err)
		attempts = append(attempts, Attempt{Model: model, Outcome: outcome, Err: err})

		c.logger.Warn("model attempt failed, moving to next model",
			zap.String("model", model),
			zap.String("outcome", string(outcome)),
			zap.Error(err),
		)
	}

	return nil, &UnavailableError{Attempts: attempts}
}

func classify(err error) Outcome {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return OutcomeTimeout
	case errors.Is(err, errMalformed):
		return OutcomeMalformed
	default:
		return OutcomeUnreachable
	}
}
