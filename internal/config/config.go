// Package config provides configuration loading and validation for the CLI.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"

	"github.com/jmin-pingu/ihcl/internal/contexts"
	"github.com/jmin-pingu/ihcl/internal/llm"
	"github.com/jmin-pingu/ihcl/internal/types"
)

// Config represents the CLI configuration that can be loaded from a JSON file.
// All fields are optional; missing values use defaults or must be provided via CLI flags.
type Config struct {
	// Inputs
	Contexts            string   `json:"contexts,omitempty"`                                      // Declaration file of (description, path) pairs
	Delimiter           string   `json:"delimiter,omitempty"`                                     // Field delimiter for delimited declarations
	Template            string   `json:"template,omitempty"`                                      // Template file
	TemplateDescription string   `json:"template_description,omitempty"`                          // What the template is for
	Brackets            []string `json:"brackets,omitempty" validate:"omitempty,len=2,dive,required"` // Left and right placeholder delimiters

	// Outputs
	OutDir  string `json:"out_dir,omitempty"`  // Directory for filled templates
	LogFile string `json:"log_file,omitempty"` // Run log; truncated at the start of every invocation

	// Limits
	Variants          int     `json:"variants,omitempty" validate:"gte=0,lte=20"`            // Filled templates per run
	Concurrency       int     `json:"concurrency,omitempty" validate:"gte=0,lte=64"`         // Worker pool size for record-level work
	RequestsPerSecond float64 `json:"requests_per_second,omitempty" validate:"gte=0"`        // Inference rate limit; zero disables it
	FailurePolicy     string  `json:"failure_policy,omitempty" validate:"omitempty,oneof=isolate fail"` // Source failure handling

	// Behavior
	APIKey     string            `json:"api_key,omitempty"`                                                                // Gemini API key
	Models     map[string]string `json:"models,omitempty" validate:"omitempty,dive,keys,oneof=lite standard advanced,endkeys,required"` // Model override per tier
	UseBrowser bool              `json:"use_browser,omitempty"`                                                            // Render web sources in a headless browser
	Verbose    bool              `json:"verbose,omitempty"`                                                                // Print detailed debug information
}

// Defaults returns the built-in configuration values.
func Defaults() Config {
	return Config{
		Delimiter:     contexts.DefaultDelimiter,
		OutDir:        "out",
		Variants:      types.DefaultVariants,
		Concurrency:   contexts.DefaultConcurrency,
		FailurePolicy: string(contexts.PolicyIsolate),
	}
}

// LoadConfig loads configuration from a JSON file.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	// Resolve path relative to current directory if not absolute
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// Validate checks that the configuration has valid values.
// Note: This doesn't check for required fields since those are handled
// by RequireRun after flags are merged.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	if len(c.Brackets) == 2 {
		if err := c.BracketPair().Validate(); err != nil {
			return fmt.Errorf("config error: %w", err)
		}
	}

	// Validate file paths exist (if specified)
	if c.Contexts != "" {
		if _, err := os.Stat(c.Contexts); os.IsNotExist(err) {
			return fmt.Errorf("config error: contexts file not found: %s", c.Contexts)
		}
	}
	if c.Template != "" {
		if _, err := os.Stat(c.Template); os.IsNotExist(err) {
			return fmt.Errorf("config error: template file not found: %s", c.Template)
		}
	}

	return nil
}

// ErrMissingField is wrapped when a field required for a run is unset.
var ErrMissingField = errors.New("missing required field")

// RequireRun checks the fields a full contextify run needs.
func (c *Config) RequireRun() error {
	switch {
	case c.Contexts == "":
		return fmt.Errorf("%w: contexts", ErrMissingField)
	case c.Template == "":
		return fmt.Errorf("%w: template", ErrMissingField)
	case len(c.Brackets) != 2:
		return fmt.Errorf("%w: brackets (left and right)", ErrMissingField)
	case c.APIKey == "":
		return fmt.Errorf("%w: api_key (or GEMINI_API_KEY)", ErrMissingField)
	}
	return nil
}

// BracketPair returns the configured delimiters. Missing entries stay empty.
func (c *Config) BracketPair() types.Brackets {
	var b types.Brackets
	copy(b[:], c.Brackets)
	return b
}

// Policy returns the failure policy as the store's type.
func (c *Config) Policy() contexts.Policy {
	return contexts.Policy(c.FailurePolicy)
}

// ModelConfig builds the inference model configuration, applying per-tier overrides.
func (c *Config) ModelConfig() (*llm.Config, error) {
	cfg := llm.DefaultConfig()
	for key, model := range c.Models {
		tier, err := llm.ParseTier(key)
		if err != nil {
			return nil, err
		}
		cfg = cfg.WithModel(tier, model)
	}
	return cfg, nil
}

// MergeWithDefaults returns a new Config with empty fields filled from defaults.
// This is used to apply config file values as defaults for CLI flags.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	// String fields: use default if empty
	if result.Contexts == "" {
		result.Contexts = defaults.Contexts
	}
	if result.Delimiter == "" {
		result.Delimiter = defaults.Delimiter
	}
	if result.Template == "" {
		result.Template = defaults.Template
	}
	if result.TemplateDescription == "" {
		result.TemplateDescription = defaults.TemplateDescription
	}
	if result.OutDir == "" {
		result.OutDir = defaults.OutDir
	}
	if result.LogFile == "" {
		result.LogFile = defaults.LogFile
	}
	if result.APIKey == "" {
		result.APIKey = defaults.APIKey
	}
	if result.FailurePolicy == "" {
		result.FailurePolicy = defaults.FailurePolicy
	}
	if len(result.Brackets) == 0 {
		result.Brackets = append([]string(nil), defaults.Brackets...)
	}
	if len(result.Models) == 0 && len(defaults.Models) > 0 {
		result.Models = make(map[string]string, len(defaults.Models))
		for k, v := range defaults.Models {
			result.Models[k] = v
		}
	}

	// Numeric fields: use default if zero
	if result.Variants == 0 {
		result.Variants = defaults.Variants
	}
	if result.Concurrency == 0 {
		result.Concurrency = defaults.Concurrency
	}
	if result.RequestsPerSecond == 0 {
		result.RequestsPerSecond = defaults.RequestsPerSecond
	}

	// Bool fields: cannot distinguish unset from false, so we don't merge
	// (CLI flags should always win for bools)

	return result
}
