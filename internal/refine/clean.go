package refine

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jmin-pingu/ihcl/internal/llm"
	"github.com/jmin-pingu/ihcl/internal/prompts"
	"github.com/jmin-pingu/ihcl/internal/types"
	"github.com/jmin-pingu/ihcl/schemas"
)

type cleanedRecord struct {
	Description string  `json:"description"`
	Content     *string `json:"content"`
}

// Clean removes description-irrelevant material from every record in parallel.
// Records without content, and records whose cleaned content comes back empty
// or absent, are dropped. Survivors are marked cleaned (Processed stays false).
func (p *Pipeline) Clean(ctx context.Context, records types.ContextCollection) (types.ContextCollection, error) {
	results := make([]*types.ContextRecord, len(records))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i, record := range records {
		if !record.HasContent() {
			p.logger.Debug("dropping record without content before cleaning",
				zap.String("description", record.Description), zap.String("path", record.Path))
			continue
		}
		g.Go(func() error {
			cleaned, err := p.cleanOne(gctx, record)
			if err != nil {
				return err
			}
			results[i] = cleaned
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(types.ContextCollection, 0, len(records))
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (p *Pipeline) cleanOne(ctx context.Context, record types.ContextRecord) (*types.ContextRecord, error) {
	var resp cleanedRecord
	err := p.invoker.InvokeJSON(ctx, llm.Call{
		Name:   string(StageClean),
		System: prompts.MustGet("refine.json", "clean-system"),
		User: prompts.Render("refine.json", "clean-user", map[string]string{
			"Description": record.Description,
			"Content":     record.Text(),
		}),
		Schema: schemas.CleanedRecord,
		Tier:   llm.TierLite,
	}, &resp)
	if err != nil {
		return nil, err
	}

	if resp.Content == nil || strings.TrimSpace(*resp.Content) == "" {
		p.logger.Debug("record irrelevant to its description, dropping",
			zap.String("description", record.Description), zap.String("path", record.Path))
		return nil, nil
	}

	out := record.Clone()
	out.Content = types.StringPtr(strings.TrimSpace(*resp.Content))
	out.MarkCleaned()
	return &out, nil
}
