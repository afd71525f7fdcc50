// Package steps provides step definitions, dependency validation and the
// routing graph for a single end-to-end run.
package steps

import (
	"errors"
	"fmt"
	"slices"
)

// Step names.
const (
	Preprocess = "preprocess"
	Tag        = "tag"
	Gather     = "gather"
	Fill       = "fill"
	// Done is the terminal node; it has no definition.
	Done = "done"
)

// Step categories.
const (
	CategoryRefinement = "refinement"
	CategoryTemplating = "templating"
	CategoryOutput     = "output"
)

// StepDefinition defines metadata for a pipeline step
type StepDefinition struct {
	Name         string
	Category     string
	Dependencies []string
	Optional     []string
	// Implemented is false for registered extension points.
	Implemented bool
}

// StepRegistry holds all step definitions
var StepRegistry = map[string]StepDefinition{
	Preprocess: {
		Name:         Preprocess,
		Category:     CategoryRefinement,
		Dependencies: []string{},
		Optional:     []string{},
		Implemented:  true,
	},
	Tag: {
		Name:         Tag,
		Category:     CategoryTemplating,
		Dependencies: []string{Preprocess},
		Optional:     []string{},
		Implemented:  true,
	},
	Gather: {
		Name:         Gather,
		Category:     CategoryRefinement,
		Dependencies: []string{Tag},
		Optional:     []string{},
		Implemented:  false,
	},
	Fill: {
		Name:         Fill,
		Category:     CategoryTemplating,
		Dependencies: []string{Tag},
		Optional:     []string{Gather},
		Implemented:  true,
	},
}

// DependencyError represents a dependency validation error
type DependencyError struct {
	Step                string
	MissingDependencies []string
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("step %s: missing dependencies: %v", e.Step, e.MissingDependencies)
}

// ErrUnknownStep is wrapped when a step name is not registered.
var ErrUnknownStep = errors.New("unknown step")

// ErrNotImplemented is wrapped when a route reaches an extension point.
var ErrNotImplemented = errors.New("step not implemented")

// ValidateDependencies checks that every required dependency of stepName is in completed.
func ValidateDependencies(stepName string, completed map[string]bool) error {
	def, ok := StepRegistry[stepName]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownStep, stepName)
	}

	var missing []string
	for _, dep := range def.Dependencies {
		if !completed[dep] {
			missing = append(missing, dep)
		}
	}

	if len(missing) > 0 {
		return &DependencyError{
			Step:                stepName,
			MissingDependencies: missing,
		}
	}
	return nil
}

// Edge is one transition. An empty When matches every decision.
type Edge struct {
	From string
	To   string
	When string
}

// Graph is the routing table for one run.
type Graph struct {
	Start string
	Edges []Edge
}

// Decisions returned by the tag step.
const (
	DecisionSufficient   = "sufficient"
	DecisionInsufficient = "insufficient"
)

// DefaultGraph is the linear preprocess, tag, fill graph. Both tag decisions
// route to fill; gather stays an unrouted extension point.
func DefaultGraph() Graph {
	return Graph{
		Start: Preprocess,
		Edges: []Edge{
			{From: Preprocess, To: Tag},
			{From: Tag, To: Fill, When: DecisionSufficient},
			{From: Tag, To: Fill, When: DecisionInsufficient},
			{From: Fill, To: Done},
		},
	}
}

// Route returns a copy of g whose edge from -[when]-> is redirected to to.
func (g Graph) Route(from, when, to string) Graph {
	out := Graph{Start: g.Start, Edges: slices.Clone(g.Edges)}
	for i, e := range out.Edges {
		if e.From == from && e.When == when {
			out.Edges[i].To = to
			return out
		}
	}
	out.Edges = append(out.Edges, Edge{From: from, To: to, When: when})
	return out
}

// Next returns the node following from for decision. Exact When matches win
// over unconditional edges.
func (g Graph) Next(from, decision string) (string, error) {
	fallback := ""
	for _, e := range g.Edges {
		if e.From != from {
			continue
		}
		if e.When == decision && e.When != "" {
			return e.To, nil
		}
		if e.When == "" && fallback == "" {
			fallback = e.To
		}
	}
	if fallback == "" {
		return "", fmt.Errorf("no route from %s for decision %q", from, decision)
	}
	return fallback, nil
}

// Validate checks that every node is registered, and that every reachable
// node is implemented.
func (g Graph) Validate() error {
	if _, ok := StepRegistry[g.Start]; !ok {
		return fmt.Errorf("%w: start %s", ErrUnknownStep, g.Start)
	}
	for _, e := range g.Edges {
		for _, node := range []string{e.From, e.To} {
			if node == Done {
				continue
			}
			if _, ok := StepRegistry[node]; !ok {
				return fmt.Errorf("%w: %s", ErrUnknownStep, node)
			}
		}
	}

	seen := map[string]bool{g.Start: true}
	queue := []string{g.Start}
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		if !StepRegistry[node].Implemented {
			return fmt.Errorf("%w: %s", ErrNotImplemented, node)
		}
		for _, e := range g.Edges {
			if e.From == node && e.To != Done && !seen[e.To] {
				seen[e.To] = true
				queue = append(queue, e.To)
			}
		}
	}
	return nil
}
