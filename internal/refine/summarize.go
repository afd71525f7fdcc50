package refine

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/jmin-pingu/ihcl/internal/llm"
	"github.com/jmin-pingu/ihcl/internal/prompts"
	"github.com/jmin-pingu/ihcl/internal/types"
	"github.com/jmin-pingu/ihcl/schemas"
)

type summary struct {
	Content string `json:"content"`
}

// Summarize merges every description group into one refined record, one call
// per group in parallel. Output order follows first appearance of each description.
func (p *Pipeline) Summarize(ctx context.Context, records types.ContextCollection) (types.ContextCollection, error) {
	groups := records.GroupByDescription()
	out := make(types.ContextCollection, len(groups))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i, group := range groups {
		g.Go(func() error {
			record, err := p.summarizeGroup(gctx, group)
			if err != nil {
				return err
			}
			out[i] = record
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *Pipeline) summarizeGroup(ctx context.Context, group types.DescriptionGroup) (types.ContextRecord, error) {
	var resp summary
	err := p.invoker.InvokeJSON(ctx, llm.Call{
		Name:   string(StageSummarize),
		System: prompts.MustGet("refine.json", "summarize-system"),
		User: prompts.Render("refine.json", "summarize-user", map[string]string{
			"Description": group.Description,
			"Records":     formatGroup(group.Records),
		}),
		Schema: schemas.Summary,
		Tier:   llm.TierStandard,
	}, &resp)
	if err != nil {
		return types.ContextRecord{}, err
	}

	record := types.ContextRecord{
		Description: group.Description,
		Content:     types.StringPtr(strings.TrimSpace(resp.Content)),
		SourceType:  groupSourceType(group.Records),
		Path:        groupPaths(group.Records),
	}
	record.MarkRefined()
	return record, nil
}

func formatGroup(records types.ContextCollection) string {
	var sb strings.Builder
	for i, r := range records {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "[%d] source: %s\n%s", i+1, r.Path, r.Text())
	}
	return sb.String()
}

// groupSourceType is the shared source type, or unknown for mixed groups.
func groupSourceType(records types.ContextCollection) types.SourceType {
	if len(records) == 0 {
		return types.SourceUnknown
	}
	first := records[0].SourceType
	for _, r := range records[1:] {
		if r.SourceType != first {
			return types.SourceUnknown
		}
	}
	return first
}

func groupPaths(records types.ContextCollection) string {
	seen := make(map[string]bool, len(records))
	paths := make([]string, 0, len(records))
	for _, r := range records {
		if r.Path == "" || seen[r.Path] {
			continue
		}
		seen[r.Path] = true
		paths = append(paths, r.Path)
	}
	return strings.Join(paths, "; ")
}
