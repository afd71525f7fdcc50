package refine

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/jmin-pingu/ihcl/internal/llm"
	"github.com/jmin-pingu/ihcl/internal/prompts"
	"github.com/jmin-pingu/ihcl/internal/types"
	"github.com/jmin-pingu/ihcl/schemas"
)

type descriptionList struct {
	Descriptions []string `json:"descriptions"`
}

// Categorize renames descriptions into shared categories with a single call and
// applies the result positionally. A response whose length differs from the
// input is a *llm.SchemaViolationError.
func (p *Pipeline) Categorize(ctx context.Context, records types.ContextCollection) (types.ContextCollection, error) {
	if len(records) == 0 {
		return types.ContextCollection{}, nil
	}

	descriptions := records.Descriptions()
	listed, err := json.Marshal(descriptions)
	if err != nil {
		return nil, fmt.Errorf("failed to encode descriptions: %w", err)
	}

	var resp descriptionList
	err = p.invoker.InvokeJSON(ctx, llm.Call{
		Name:   string(StageCategorize),
		System: prompts.MustGet("refine.json", "categorize-system"),
		User: prompts.Render("refine.json", "categorize-user", map[string]string{
			"Count":        strconv.Itoa(len(descriptions)),
			"Descriptions": string(listed),
		}),
		Schema: schemas.Descriptions,
		Tier:   llm.TierLite,
	}, &resp)
	if err != nil {
		return nil, err
	}

	if len(resp.Descriptions) != len(records) {
		return nil, &llm.SchemaViolationError{
			Schema:  schemas.Descriptions,
			Message: fmt.Sprintf("expected %d descriptions, got %d", len(records), len(resp.Descriptions)),
		}
	}

	out := records.Clone()
	for i := range out {
		out[i].Description = resp.Descriptions[i]
	}
	return out, nil
}
