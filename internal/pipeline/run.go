// Package pipeline orchestrates end-to-end runs: build and refine a context
// collection, tag the template's placeholders, then fill and write the results.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jmin-pingu/ihcl/internal/contexts"
	"github.com/jmin-pingu/ihcl/internal/observability"
	"github.com/jmin-pingu/ihcl/internal/pipeline/steps"
	"github.com/jmin-pingu/ihcl/internal/refine"
	"github.com/jmin-pingu/ihcl/internal/templating"
	"github.com/jmin-pingu/ihcl/internal/types"
)

// ProgressEvent represents a progress update during pipeline execution
type ProgressEvent struct {
	Step     string `json:"step"`
	Category string `json:"category"`
	Message  string `json:"message"`
	RunID    string `json:"run_id,omitempty"`
	Content  any    `json:"content,omitempty"`
}

// ProgressCallback is called when pipeline progress occurs
type ProgressCallback func(event ProgressEvent)

// Builder builds a collection from entries. *contexts.Store satisfies it.
type Builder interface {
	Build(ctx context.Context, entries []types.Entry) (types.ContextCollection, error)
}

// Options holds configuration for running the pipeline
type Options struct {
	Template types.Template
	// Variants is the number of filled templates per run.
	Variants int
	// OutDir receives <run>_<index>.txt files. Empty skips writing.
	OutDir string
	// Graph defaults to steps.DefaultGraph.
	Graph      *steps.Graph
	OnProgress ProgressCallback
	// RunLog and Printer are optional sinks.
	RunLog  *observability.RunLog
	Printer *observability.Printer
	Logger  *zap.Logger
}

// Result holds everything one run produced.
type Result struct {
	RunID    string
	Contexts types.ContextCollection
	Template types.Template
	Decision templating.Sufficiency
	Fills    []string
	Files    []string
}

// Orchestrator drives runs through the step graph. It is safe for concurrent use;
// runs share only the immutable template and the stateless collaborators.
type Orchestrator struct {
	builder Builder
	refiner *refine.Pipeline
	engine  *templating.Engine
	opts    Options
	graph   steps.Graph
	logger  *zap.Logger

	printMu sync.Mutex
}

// New validates the template and graph and returns an orchestrator.
func New(builder Builder, refiner *refine.Pipeline, engine *templating.Engine, opts Options) (*Orchestrator, error) {
	if opts.Variants == 0 {
		opts.Variants = types.DefaultVariants
	}
	if opts.Variants < 1 {
		return nil, fmt.Errorf("%w: got %d", templating.ErrInvalidVariants, opts.Variants)
	}
	if err := engine.Validate(opts.Template); err != nil {
		return nil, err
	}

	graph := steps.DefaultGraph()
	if opts.Graph != nil {
		graph = *opts.Graph
	}
	if err := graph.Validate(); err != nil {
		return nil, fmt.Errorf("invalid step graph: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Orchestrator{
		builder: builder,
		refiner: refiner,
		engine:  engine,
		opts:    opts,
		graph:   graph,
		logger:  logger,
	}, nil
}

// runState is the value threaded through the steps of one run.
type runState struct {
	id       string
	entries  []types.Entry
	contexts types.ContextCollection
	template types.Template
	decision templating.Sufficiency
	fills    []string
	files    []string
}

type stepFunc func(ctx context.Context, st *runState) (decision string, err error)

func (o *Orchestrator) executors() map[string]stepFunc {
	return map[string]stepFunc{
		steps.Preprocess: o.preprocess,
		steps.Tag:        o.tag,
		steps.Fill:       o.fill,
	}
}

// Run executes one run. Fatal errors come back as *RunError.
func (o *Orchestrator) Run(ctx context.Context, run contexts.Run) (*Result, error) {
	st := &runState{
		id:       run.Name,
		entries:  run.Entries,
		template: o.opts.Template.Clone(),
	}
	if st.id == "" {
		st.id = uuid.NewString()
	}

	exec := o.executors()
	completed := make(map[string]bool)
	node := o.graph.Start
	for node != steps.Done {
		if err := steps.ValidateDependencies(node, completed); err != nil {
			return nil, &RunError{RunID: st.id, Stage: node, Cause: err}
		}
		fn, ok := exec[node]
		if !ok {
			return nil, &RunError{RunID: st.id, Stage: node, Cause: fmt.Errorf("%w: %s", steps.ErrNotImplemented, node)}
		}

		decision, err := fn(ctx, st)
		if err != nil {
			var runErr *RunError
			if errors.As(err, &runErr) {
				return nil, err
			}
			return nil, &RunError{RunID: st.id, Stage: node, Cause: err}
		}
		completed[node] = true

		next, err := o.graph.Next(node, decision)
		if err != nil {
			return nil, &RunError{RunID: st.id, Stage: node, Cause: err}
		}
		node = next
	}

	o.logger.Info("run completed", zap.String("run", st.id), zap.Int("fills", len(st.fills)))
	return &Result{
		RunID:    st.id,
		Contexts: st.contexts,
		Template: st.template,
		Decision: st.decision,
		Fills:    st.fills,
		Files:    st.files,
	}, nil
}

// RunAll executes runs concurrently. A failing run does not cancel its siblings;
// results[i] is nil for a failed run and the joined error lists every *RunError.
func (o *Orchestrator) RunAll(ctx context.Context, runs []contexts.Run) ([]*Result, error) {
	results := make([]*Result, len(runs))
	errs := make([]error, len(runs))

	var g errgroup.Group
	for i, run := range runs {
		g.Go(func() error {
			results[i], errs[i] = o.Run(ctx, run)
			return nil
		})
	}
	_ = g.Wait()

	return results, errors.Join(errs...)
}

func (o *Orchestrator) preprocess(ctx context.Context, st *runState) (string, error) {
	collection, err := o.builder.Build(ctx, st.entries)
	if err != nil {
		return "", &RunError{RunID: st.id, Stage: "build", Cause: err}
	}
	o.record("build", st.id, collection)
	o.emit(steps.Preprocess, st.id, fmt.Sprintf("Built %d context records", len(collection)), nil)

	for _, stage := range refine.Stages {
		collection, err = o.refiner.RunStage(ctx, stage, collection)
		if err != nil {
			return "", &RunError{RunID: st.id, Stage: string(stage), Cause: err}
		}
		o.record(string(stage), st.id, collection)
		o.emit(steps.Preprocess, st.id, fmt.Sprintf("%s: %d records", stage, len(collection)), nil)
	}

	st.contexts = collection
	if o.opts.Printer != nil {
		o.printMu.Lock()
		o.opts.Printer.PrintContexts(fmt.Sprintf("REFINED CONTEXTS (%s)", st.id), collection)
		o.printMu.Unlock()
	}
	return "", nil
}

func (o *Orchestrator) tag(ctx context.Context, st *runState) (string, error) {
	phrases, err := o.engine.Extract(ctx, st.template)
	if err != nil {
		return "", &RunError{RunID: st.id, Stage: "extract", Cause: err}
	}
	o.record("extract", st.id, phrases)
	o.emit(steps.Tag, st.id, fmt.Sprintf("Extracted %d target phrases", len(phrases)), phrases)

	tagged, decision, err := o.engine.Tag(ctx, st.template, phrases, st.contexts)
	if err != nil {
		return "", err
	}
	st.template = tagged
	st.decision = decision
	o.record(steps.Tag, st.id, tagged.Metadata.SubstitutionCandidates)
	o.emit(steps.Tag, st.id, fmt.Sprintf("Tagged %d phrases (%s)", len(phrases), decision), tagged.Metadata.SubstitutionCandidates)

	if decision == templating.Insufficient {
		o.logger.Warn("some placeholders have no related context",
			zap.String("run", st.id))
	}
	if o.opts.Printer != nil {
		o.printMu.Lock()
		o.opts.Printer.PrintCandidates(tagged)
		o.printMu.Unlock()
	}
	return string(decision), nil
}

func (o *Orchestrator) fill(ctx context.Context, st *runState) (string, error) {
	fills, err := o.engine.Fill(ctx, st.template, st.contexts, o.opts.Variants)
	if err != nil {
		return "", err
	}
	st.fills = fills
	o.record(steps.Fill, st.id, fills)

	if o.opts.OutDir != "" {
		files, err := WriteFills(o.opts.OutDir, st.id, fills)
		if err != nil {
			return "", &RunError{RunID: st.id, Stage: "output", Cause: err}
		}
		st.files = files
	}
	o.emit(steps.Fill, st.id, fmt.Sprintf("Filled %d templates", len(fills)), st.files)

	if o.opts.Printer != nil {
		o.printMu.Lock()
		o.opts.Printer.PrintFills(st.id, fills)
		o.printMu.Unlock()
	}
	return "", nil
}

func (o *Orchestrator) record(stage, runID string, snapshot any) {
	o.opts.RunLog.Record(stage, runID, snapshot)
}

// emit calls the progress callback if configured
func (o *Orchestrator) emit(step, runID, message string, content any) {
	if o.opts.OnProgress != nil {
		o.opts.OnProgress(ProgressEvent{
			Step:     step,
			Category: steps.StepRegistry[step].Category,
			Message:  message,
			RunID:    runID,
			Content:  content,
		})
	}
}
