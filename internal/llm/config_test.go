package llm

import (
	"context"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_GetModel(t *testing.T) {
	tests := []struct {
		name   string
		models map[ModelTier]string
		tier   ModelTier
		want   string
	}{
		{"configured tier", DefaultConfig().Models, TierAdvanced, "gemini-2.5-pro"},
		{"unknown tier falls back to standard", DefaultConfig().Models, "custom", "gemini-2.5-flash"},
		{"standard missing falls back to lite", map[ModelTier]string{TierLite: "lite-only"}, TierAdvanced, "lite-only"},
		{"nothing configured", map[ModelTier]string{}, TierLite, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Provider: ProviderGemini, Models: tt.models}
			assert.Equal(t, tt.want, cfg.GetModel(tt.tier))
		})
	}
}

func TestConfig_WithModelCopies(t *testing.T) {
	base := DefaultConfig()
	base.Temperature = 0.4

	custom := base.WithModel(TierAdvanced, "fill-model")

	assert.Equal(t, "gemini-2.5-pro", base.GetModel(TierAdvanced))
	assert.Equal(t, "fill-model", custom.GetModel(TierAdvanced))
	assert.Equal(t, base.GetModel(TierLite), custom.GetModel(TierLite))
	assert.Equal(t, float32(0.4), custom.temperature())
}

func TestConfig_Temperature(t *testing.T) {
	assert.Equal(t, DefaultTemperature, (&Config{}).temperature())
	assert.Equal(t, DefaultTemperature, (&Config{Temperature: -1}).temperature())
	assert.Equal(t, float32(0.7), (&Config{Temperature: 0.7}).temperature())
}

func TestNewClient_Errors(t *testing.T) {
	_, err := NewClient(context.Background(), nil, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key is required")

	_, err = NewClient(context.Background(), &Config{Provider: "openai"}, "key")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported")
}

func TestResponseText(t *testing.T) {
	t.Run("joins text parts", func(t *testing.T) {
		resp := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{genai.Text(`{"fills": `), genai.Text(`["a"]}`)}},
		}}}
		text, err := responseText("m", resp)
		require.NoError(t, err)
		assert.Equal(t, `{"fills": ["a"]}`, text)
	})

	for name, resp := range map[string]*genai.GenerateContentResponse{
		"nil response":  nil,
		"no candidates": {},
		"no content":    {Candidates: []*genai.Candidate{{}}},
		"no text parts": {Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: []genai.Part{genai.Blob{MIMEType: "image/png"}}}}}},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := responseText("m", resp)
			var apiErr *APICallError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, "m", apiErr.Model)
		})
	}
}

func TestParseTier(t *testing.T) {
	for _, tier := range Tiers {
		got, err := ParseTier(string(tier))
		require.NoError(t, err)
		assert.Equal(t, tier, got)
	}

	_, err := ParseTier("turbo")
	assert.ErrorContains(t, err, `unknown model tier "turbo"`)
}

func TestConfig_WithModelOnEmptyConfig(t *testing.T) {
	cfg := (&Config{Provider: ProviderGemini}).WithModel(TierLite, "lite-model")
	assert.Equal(t, "lite-model", cfg.GetModel(TierAdvanced))
}
