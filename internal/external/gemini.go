package external

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"

	"agroia/internal/types"
)

// ErrMissingAPIKey is returned by a GeminiClient built without a key.
var ErrMissingAPIKey = errors.New("gemini api key not configured")

// contentGenerator is the subset of *genai.Models the client uses.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiConfig configures the Gemini text client.
type GeminiConfig struct {
	APIKey          string
	Model           string
	Temperature     float32
	MaxOutputTokens int32
	Timeout         time.Duration
	// SystemInstruction is sent with every request when set.
	SystemInstruction string
	Logger            *slog.Logger
}

// GeminiClient generates advisory text with the Gemini API.
type GeminiClient struct {
	models contentGenerator
	cfg    GeminiConfig
	logger *slog.Logger
}

// NewGeminiClient dials the Gemini API. A missing key is not an error at
// construction: the client is returned and every Generate call fails with
// ErrMissingAPIKey, which the narrative layer turns into its unavailable
// message.
func NewGeminiClient(ctx context.Context, cfg GeminiConfig) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return newGeminiClient(nil, cfg), nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamNarrative, "create gemini client", err)
	}
	return newGeminiClient(client.Models, cfg), nil
}

func newGeminiClient(models contentGenerator, cfg GeminiConfig) *GeminiClient {
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &GeminiClient{models: models, cfg: cfg, logger: logger}
}

// Generate sends prompt and returns the model's text.
func (c *GeminiClient) Generate(ctx context.Context, prompt string) (string, error) {
	if c.models == nil {
		return "", ErrMissingAPIKey
	}
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(c.cfg.Temperature),
	}
	if c.cfg.MaxOutputTokens > 0 {
		config.MaxOutputTokens = c.cfg.MaxOutputTokens
	}
	if c.cfg.SystemInstruction != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: c.cfg.SystemInstruction}},
		}
	}

	start := time.Now()
	result, err := c.models.GenerateContent(ctx, c.cfg.Model, genai.Text(prompt), config)
	if err != nil {
		return "", types.NewAppError(types.ErrCodeUpstreamNarrative, "gemini generation failed", err)
	}

	text := strings.TrimSpace(result.Text())
	if text == "" {
		return "", types.NewAppError(types.ErrCodeUpstreamNarrative, "gemini returned empty text", nil)
	}
	c.logger.DebugContext(ctx, "gemini generation complete",
		"model", c.cfg.Model,
		"duration_ms", time.Since(start).Milliseconds(),
		"run_id", types.GetRunID(ctx),
	)
	return text, nil
}
