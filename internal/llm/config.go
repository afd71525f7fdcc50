// Package llm provides the inference capability boundary: provider clients,
// model tiers, rate limiting and schema-checked structured invocation.
package llm

import (
	"fmt"
	"maps"
)

// ModelTier selects a model by how much reasoning a stage needs.
type ModelTier string

const (
	// TierLite serves per-record work: clean, categorize.
	TierLite ModelTier = "lite"
	// TierStandard serves summarize, extract and tag.
	TierStandard ModelTier = "standard"
	// TierAdvanced serves fill.
	TierAdvanced ModelTier = "advanced"
)

// Tiers lists every tier from cheapest to most capable.
var Tiers = []ModelTier{TierLite, TierStandard, TierAdvanced}

// ParseTier converts a configuration key into a ModelTier.
func ParseTier(s string) (ModelTier, error) {
	for _, t := range Tiers {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown model tier %q", s)
}

// Provider names an inference backend.
type Provider string

// ProviderGemini is Google Gemini through generative-ai-go.
const ProviderGemini Provider = "gemini"

// DefaultTemperature keeps structured output stable across calls.
const DefaultTemperature float32 = 0.1

// Config maps tiers to provider models.
type Config struct {
	Provider Provider
	Models   map[ModelTier]string
	// Temperature applies to every tier; zero selects DefaultTemperature.
	Temperature float32
}

// DefaultConfig returns the Gemini tier mapping.
func DefaultConfig() *Config {
	return &Config{
		Provider: ProviderGemini,
		Models: map[ModelTier]string{
			TierLite:     "gemini-2.5-flash-lite",
			TierStandard: "gemini-2.5-flash",
			TierAdvanced: "gemini-2.5-pro",
		},
		Temperature: DefaultTemperature,
	}
}

// GetModel returns the model for tier. A tier without a model falls back to
// the standard model, then the lite one; "" means nothing is configured.
func (c *Config) GetModel(tier ModelTier) string {
	for _, t := range []ModelTier{tier, TierStandard, TierLite} {
		if model, ok := c.Models[t]; ok {
			return model
		}
	}
	return ""
}

// WithModel returns a copy of c with tier mapped to model.
func (c *Config) WithModel(tier ModelTier, model string) *Config {
	out := *c
	out.Models = maps.Clone(c.Models)
	if out.Models == nil {
		out.Models = make(map[ModelTier]string, 1)
	}
	out.Models[tier] = model
	return &out
}

func (c *Config) temperature() float32 {
	if c.Temperature <= 0 {
		return DefaultTemperature
	}
	return c.Temperature
}
