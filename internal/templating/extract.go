package templating

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/jmin-pingu/ihcl/internal/llm"
	"github.com/jmin-pingu/ihcl/internal/prompts"
	"github.com/jmin-pingu/ihcl/internal/types"
	"github.com/jmin-pingu/ihcl/schemas"
)

type phraseList struct {
	Phrases []string `json:"phrases"`
}

// Extract returns the literal text inside every placeholder span, in template
// order with duplicates kept.
func (e *Engine) Extract(ctx context.Context, tmpl types.Template) ([]string, error) {
	if err := e.Validate(tmpl); err != nil {
		return nil, err
	}
	brackets := tmpl.Metadata.Brackets

	var resp phraseList
	err := e.invoker.InvokeJSON(ctx, llm.Call{
		Name:   "extract",
		System: prompts.MustGet("template.json", "extract-system"),
		User: prompts.Render("template.json", "extract-user", map[string]string{
			"Left":                brackets.Left(),
			"Right":               brackets.Right(),
			"TemplateDescription": tmpl.Description,
			"Template":            tmpl.Content,
		}),
		Schema: schemas.Phrases,
		Tier:   llm.TierStandard,
	}, &resp)
	if err != nil {
		return nil, err
	}

	phrases := make([]string, len(resp.Phrases))
	for i, p := range resp.Phrases {
		phrases[i] = unwrapPhrase(p, brackets)
	}

	e.logger.Debug("target phrases extracted",
		zap.Int("phrases", len(phrases)),
		zap.Int("spans", len(Spans(tmpl.Content, brackets))))
	return phrases, nil
}

// unwrapPhrase strips a bracket pair the model echoed around the span text.
func unwrapPhrase(phrase string, brackets types.Brackets) string {
	p := strings.TrimSpace(phrase)
	if strings.HasPrefix(p, brackets.Left()) && strings.HasSuffix(p, brackets.Right()) &&
		len(p) >= len(brackets.Left())+len(brackets.Right()) {
		p = p[len(brackets.Left()) : len(p)-len(brackets.Right())]
	}
	return p
}
