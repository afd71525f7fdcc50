package templating

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/jmin-pingu/ihcl/internal/llm"
	"github.com/jmin-pingu/ihcl/internal/prompts"
	"github.com/jmin-pingu/ihcl/internal/types"
	"github.com/jmin-pingu/ihcl/schemas"
)

// ErrInvalidVariants is returned when fewer than one rendering is requested.
var ErrInvalidVariants = errors.New("variants must be at least 1")

type fillList struct {
	Fills []string `json:"fills"`
}

// Fill writes n complete renderings of tmpl using its tagged candidates and
// contexts. A response with the wrong count, or a rendering that still contains
// a delimiter, is a *llm.SchemaViolationError.
func (e *Engine) Fill(ctx context.Context, tmpl types.Template, contexts types.ContextCollection, n int) ([]string, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidVariants, n)
	}
	if err := e.Validate(tmpl); err != nil {
		return nil, err
	}
	brackets := tmpl.Metadata.Brackets

	candidates, err := json.MarshalIndent(tmpl.Metadata.SubstitutionCandidates, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode substitution candidates: %w", err)
	}

	var resp fillList
	err = e.invoker.InvokeJSON(ctx, llm.Call{
		Name:   "fill",
		System: prompts.MustGet("template.json", "fill-system"),
		User: prompts.Render("template.json", "fill-user", map[string]string{
			"Variants":            strconv.Itoa(n),
			"Left":                brackets.Left(),
			"Right":               brackets.Right(),
			"TemplateDescription": tmpl.Description,
			"Template":            tmpl.Content,
			"Candidates":          string(candidates),
			"Contexts":            formatContexts(contexts),
		}),
		Schema: schemas.Fills,
		Tier:   llm.TierAdvanced,
	}, &resp)
	if err != nil {
		return nil, err
	}

	if len(resp.Fills) != n {
		return nil, &llm.SchemaViolationError{
			Schema:  schemas.Fills,
			Message: fmt.Sprintf("expected %d renderings, got %d", n, len(resp.Fills)),
		}
	}
	for i, fill := range resp.Fills {
		if brackets.Contained(fill) {
			return nil, &llm.SchemaViolationError{
				Schema:  schemas.Fills,
				Message: fmt.Sprintf("rendering %d still contains a placeholder delimiter", i+1),
			}
		}
	}
	return resp.Fills, nil
}
