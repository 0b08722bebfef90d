package external

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"agroia/internal/types"
)

type mockGenerator struct {
	GenerateContentFunc func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

func (m *mockGenerator) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	return m.GenerateContentFunc(ctx, model, contents, config)
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: text}}},
		}},
	}
}

func TestGeminiClient_Generate(t *testing.T) {
	var gotModel string
	var gotConfig *genai.GenerateContentConfig
	var gotPrompt string
	mock := &mockGenerator{
		GenerateContentFunc: func(_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			gotModel = model
			gotConfig = config
			gotPrompt = contents[0].Parts[0].Text
			return textResponse("  Plante soja.  "), nil
		},
	}
	c := newGeminiClient(mock, GeminiConfig{Temperature: 0.4, MaxOutputTokens: 300, SystemInstruction: "Seja breve."})

	got, err := c.Generate(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "Plante soja.", got)
	assert.Equal(t, "gemini-2.0-flash", gotModel)
	assert.Equal(t, "prompt", gotPrompt)
	require.NotNil(t, gotConfig.Temperature)
	assert.Equal(t, float32(0.4), *gotConfig.Temperature)
	assert.Equal(t, int32(300), gotConfig.MaxOutputTokens)
	require.NotNil(t, gotConfig.SystemInstruction)
	assert.Equal(t, "Seja breve.", gotConfig.SystemInstruction.Parts[0].Text)
}

func TestGeminiClient_Failures(t *testing.T) {
	t.Run("missing key", func(t *testing.T) {
		c, err := NewGeminiClient(context.Background(), GeminiConfig{})
		require.NoError(t, err)
		_, err = c.Generate(context.Background(), "prompt")
		assert.ErrorIs(t, err, ErrMissingAPIKey)
	})

	t.Run("upstream error", func(t *testing.T) {
		c := newGeminiClient(&mockGenerator{
			GenerateContentFunc: func(context.Context, string, []*genai.Content, *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
				return nil, errors.New("quota")
			},
		}, GeminiConfig{})
		_, err := c.Generate(context.Background(), "prompt")
		assert.Equal(t, types.ErrCodeUpstreamNarrative, appErrorCode(t, err))
	})

	t.Run("empty text", func(t *testing.T) {
		c := newGeminiClient(&mockGenerator{
			GenerateContentFunc: func(context.Context, string, []*genai.Content, *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
				return textResponse(" "), nil
			},
		}, GeminiConfig{})
		_, err := c.Generate(context.Background(), "prompt")
		assert.Equal(t, types.ErrCodeUpstreamNarrative, appErrorCode(t, err))
	})
}
