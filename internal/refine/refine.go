// Package refine implements the refinement pipeline: Clean, then Categorize, then Summarize.
// Every stage takes a collection and returns a new one; inputs are never mutated.
package refine

import (
	"context"

	"go.uber.org/zap"

	"github.com/jmin-pingu/ihcl/internal/llm"
	"github.com/jmin-pingu/ihcl/internal/types"
)

// DefaultConcurrency bounds parallel inference calls within a stage.
const DefaultConcurrency = 5

// Stage names one refinement step.
type Stage string

const (
	StageClean      Stage = "clean"
	StageCategorize Stage = "categorize"
	StageSummarize  Stage = "summarize"
)

// Stages is the fixed stage order.
var Stages = []Stage{StageClean, StageCategorize, StageSummarize}

// Observer is called with each stage's output once the stage completes.
type Observer func(stage Stage, records types.ContextCollection)

// Pipeline runs the refinement stages against an inference capability.
type Pipeline struct {
	invoker     *llm.Invoker
	concurrency int
	logger      *zap.Logger
	observer    Observer
}

// Option customises a Pipeline.
type Option func(*Pipeline)

// WithConcurrency sets the per-stage worker pool size; values below 1 are ignored.
func WithConcurrency(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithObserver registers a stage-completion callback.
func WithObserver(o Observer) Option {
	return func(p *Pipeline) { p.observer = o }
}

// New creates a pipeline invoking inference through invoker.
func New(invoker *llm.Invoker, opts ...Option) *Pipeline {
	p := &Pipeline{
		invoker:     invoker,
		concurrency: DefaultConcurrency,
		logger:      zap.NewNop(),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Run applies every stage in order. A stage error stops the pipeline.
func (p *Pipeline) Run(ctx context.Context, records types.ContextCollection) (types.ContextCollection, error) {
	current := records
	for _, stage := range Stages {
		next, err := p.RunStage(ctx, stage, current)
		if err != nil {
			return nil, err
		}
		current = next
	}
	return current, nil
}

// RunStage applies one stage and notifies the observer.
func (p *Pipeline) RunStage(ctx context.Context, stage Stage, records types.ContextCollection) (types.ContextCollection, error) {
	var (
		out types.ContextCollection
		err error
	)
	switch stage {
	case StageClean:
		out, err = p.Clean(ctx, records)
	case StageCategorize:
		out, err = p.Categorize(ctx, records)
	case StageSummarize:
		out, err = p.Summarize(ctx, records)
	default:
		return nil, &UnknownStageError{Stage: stage}
	}
	if err != nil {
		return nil, err
	}

	p.logger.Info("refinement stage completed",
		zap.String("stage", string(stage)),
		zap.Int("records_in", len(records)),
		zap.Int("records_out", len(out)))
	if p.observer != nil {
		p.observer(stage, out.Clone())
	}
	return out, nil
}

// UnknownStageError is returned by RunStage for a stage outside Stages.
type UnknownStageError struct {
	Stage Stage
}

func (e *UnknownStageError) Error() string {
	return "unknown refinement stage: " + string(e.Stage)
}
