package templating

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jmin-pingu/ihcl/internal/llm"
	"github.com/jmin-pingu/ihcl/internal/prompts"
	"github.com/jmin-pingu/ihcl/internal/types"
	"github.com/jmin-pingu/ihcl/schemas"
)

// Sufficiency is Tag's routing decision.
type Sufficiency string

const (
	// Sufficient means every phrase found at least one candidate.
	Sufficient Sufficiency = "sufficient"
	// Insufficient means at least one phrase found nothing.
	Insufficient Sufficiency = "insufficient"
)

type candidateList struct {
	Candidates []string `json:"candidates"`
}

// Tag gathers candidate replacements for every phrase, one call per phrase in
// parallel. The returned template carries exactly one SubstitutionCandidate
// per phrase, in phrase order; phrases with no related material keep an empty list.
func (e *Engine) Tag(ctx context.Context, tmpl types.Template, phrases []string, contexts types.ContextCollection) (types.Template, Sufficiency, error) {
	candidates := make([]types.SubstitutionCandidate, len(phrases))
	rendered := formatContexts(contexts)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, phrase := range phrases {
		g.Go(func() error {
			var resp candidateList
			err := e.invoker.InvokeJSON(gctx, llm.Call{
				Name:   "tag",
				System: prompts.MustGet("template.json", "tag-system"),
				User: prompts.Render("template.json", "tag-user", map[string]string{
					"Phrase":   phrase,
					"Contexts": rendered,
				}),
				Schema: schemas.Candidates,
				Tier:   llm.TierStandard,
			}, &resp)
			if err != nil {
				return err
			}
			replacements := resp.Candidates
			if replacements == nil {
				replacements = []string{}
			}
			candidates[i] = types.SubstitutionCandidate{
				TargetPhrase:          phrase,
				CandidateReplacements: replacements,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return types.Template{}, "", err
	}

	out := tmpl.Clone()
	out.Metadata.SubstitutionCandidates = candidates

	decision := Assess(candidates)
	e.logger.Debug("phrases tagged",
		zap.Int("phrases", len(phrases)),
		zap.String("decision", string(decision)))
	return out, decision, nil
}

// Assess reports Insufficient when any candidate list is empty.
func Assess(candidates []types.SubstitutionCandidate) Sufficiency {
	for _, c := range candidates {
		if len(c.CandidateReplacements) == 0 {
			return Insufficient
		}
	}
	return Sufficient
}
