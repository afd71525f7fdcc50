// Package templating implements the template engine: Extract target phrases from
// placeholder spans, Tag each phrase with related context material, then Fill
// the template into N independent renderings.
package templating

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/jmin-pingu/ihcl/internal/llm"
	"github.com/jmin-pingu/ihcl/internal/types"
)

// DefaultConcurrency bounds parallel Tag calls.
const DefaultConcurrency = 5

// Engine runs template stages against an inference capability.
type Engine struct {
	invoker     *llm.Invoker
	concurrency int
	logger      *zap.Logger
	validate    *validator.Validate
}

// Option customises an Engine.
type Option func(*Engine)

// WithConcurrency sets the Tag worker pool size; values below 1 are ignored.
func WithConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// New creates an engine invoking inference through invoker.
func New(invoker *llm.Invoker, opts ...Option) *Engine {
	e := &Engine{
		invoker:     invoker,
		concurrency: DefaultConcurrency,
		logger:      zap.NewNop(),
		validate:    validator.New(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// ErrInvalidTemplate is wrapped by Validate failures.
var ErrInvalidTemplate = errors.New("invalid template")

// Validate checks the template's struct tags and its bracket pair.
func (e *Engine) Validate(t types.Template) error {
	if err := e.validate.Struct(t); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTemplate, err)
	}
	if err := t.Metadata.Brackets.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTemplate, err)
	}
	return nil
}

type promptRecord struct {
	Description string `json:"description"`
	Content     string `json:"content"`
}

// formatContexts renders records with content as a JSON list for prompts.
func formatContexts(records types.ContextCollection) string {
	kept := records.WithContent()
	list := make([]promptRecord, 0, len(kept))
	for _, r := range kept {
		list = append(list, promptRecord{Description: r.Description, Content: r.Text()})
	}
	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return "[]"
	}
	return string(data)
}
