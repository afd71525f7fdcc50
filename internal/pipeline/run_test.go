package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmin-pingu/ihcl/internal/contexts"
	"github.com/jmin-pingu/ihcl/internal/fetch"
	"github.com/jmin-pingu/ihcl/internal/ingestion"
	"github.com/jmin-pingu/ihcl/internal/llm"
	"github.com/jmin-pingu/ihcl/internal/llm/llmtest"
	"github.com/jmin-pingu/ihcl/internal/observability"
	"github.com/jmin-pingu/ihcl/internal/pipeline/steps"
	"github.com/jmin-pingu/ihcl/internal/refine"
	"github.com/jmin-pingu/ihcl/internal/templating"
	"github.com/jmin-pingu/ihcl/internal/types"
)

var angle = types.Brackets{"<", ">"}

const sentence = "I have <insert skill> years building <insert domain>."

// between returns the text after the first start marker up to the next end marker.
func between(s, start, end string) string {
	_, rest, ok := strings.Cut(s, start)
	if !ok {
		return ""
	}
	body, _, _ := strings.Cut(rest, end)
	return body
}

// scripted answers every stage with deterministic, well-formed responses.
func scripted() *llmtest.Client {
	return llmtest.New().
		On("clean", func(p llm.Prompt) (string, error) {
			return llmtest.JSON(map[string]any{"content": between(p.User, "\"\"\"\n", "\n\"\"\"")}), nil
		}).
		On("categorize", func(p llm.Prompt) (string, error) {
			var descriptions []string
			if err := json.Unmarshal([]byte(between(p.User, "descriptions:\n", "\n\n")), &descriptions); err != nil {
				return "", err
			}
			return llmtest.JSON(map[string]any{"descriptions": descriptions}), nil
		}).
		On("summarize", func(p llm.Prompt) (string, error) {
			description := between(p.User, "Description: ", "\n")
			return llmtest.JSON(map[string]any{"content": "summary of " + description}), nil
		}).
		On("extract", func(p llm.Prompt) (string, error) {
			tmpl := between(p.User, "\"\"\"\n", "\n\"\"\"")
			return llmtest.JSON(map[string]any{"phrases": templating.Phrases(tmpl, angle)}), nil
		}).
		On("tag", func(p llm.Prompt) (string, error) {
			switch {
			case strings.Contains(p.User, "Target phrase: insert skill"):
				return `{"candidates": ["5"]}`, nil
			case strings.Contains(p.User, "Target phrase: insert domain"):
				return `{"candidates": ["payment platforms"]}`, nil
			}
			return `{"candidates": []}`, nil
		}).
		On("fill", func(p llm.Prompt) (string, error) {
			var n int
			if _, err := fmt.Sscanf(between(p.User, "Write ", " complete"), "%d", &n); err != nil {
				return "", err
			}
			fills := make([]string, n)
			for i := range fills {
				fills[i] = fmt.Sprintf("I have 5 years building payment platforms (take %d).", i+1)
			}
			return llmtest.JSON(map[string]any{"fills": fills}), nil
		})
}

type pdfStub struct{ text string }

func (p pdfStub) Parse(context.Context, string) (string, error) { return p.text, nil }

// countingResolver counts resolutions before delegating.
type countingResolver struct {
	calls atomic.Int32
	next  contexts.Resolver
}

func (r *countingResolver) Resolve(ctx context.Context, path string) (*ingestion.Source, error) {
	r.calls.Add(1)
	return r.next.Resolve(ctx, path)
}

type fixture struct {
	dir      string
	client   *llmtest.Client
	resolver *countingResolver
	orch     *Orchestrator
	events   []ProgressEvent
	mu       sync.Mutex
}

func newFixture(t *testing.T, client *llmtest.Client, web ingestion.TextFetcher, mutate func(*Options)) *fixture {
	t.Helper()
	f := &fixture{dir: t.TempDir(), client: client}

	require.NoError(t, os.WriteFile(filepath.Join(f.dir, "skills.txt"), []byte("Go\nKubernetes\n"), 0o644))

	f.resolver = &countingResolver{next: ingestion.NewResolver(web,
		ingestion.WithParser(types.SourcePDF, pdfStub{text: "Five years at a payments company"}))}
	store := contexts.NewStore(f.resolver)

	invoker := llm.NewInvoker(client, nil)
	tmpl, err := types.NewTemplate(sentence, "one-line bio", angle)
	require.NoError(t, err)

	opts := Options{
		Template: *tmpl,
		Variants: 1,
		OutDir:   filepath.Join(f.dir, "out"),
		OnProgress: func(e ProgressEvent) {
			f.mu.Lock()
			f.events = append(f.events, e)
			f.mu.Unlock()
		},
	}
	if mutate != nil {
		mutate(&opts)
	}

	f.orch, err = New(store, refine.New(invoker), templating.New(invoker), opts)
	require.NoError(t, err)
	return f
}

func (f *fixture) path(name string) string { return filepath.Join(f.dir, name) }

func TestRun_EndToEnd(t *testing.T) {
	f := newFixture(t, scripted(), nil, nil)

	result, err := f.orch.Run(context.Background(), contexts.Run{
		Name: "bio",
		Entries: []types.Entry{
			{Description: "skills", Path: f.path("skills.txt")},
			{Description: "experience", Path: f.path("resume.pdf")},
		},
	})
	require.NoError(t, err)

	require.Len(t, result.Fills, 1)
	fill := result.Fills[0]
	assert.NotContains(t, fill, "<")
	assert.NotContains(t, fill, ">")
	assert.Contains(t, fill, "5")
	assert.Contains(t, fill, "payment platforms")

	assert.Equal(t, templating.Sufficient, result.Decision)
	require.Len(t, result.Template.Metadata.SubstitutionCandidates, 2)
	assert.Equal(t, "insert skill", result.Template.Metadata.SubstitutionCandidates[0].TargetPhrase)

	require.Len(t, result.Contexts, 2)
	for _, r := range result.Contexts {
		assert.True(t, r.Processed)
	}

	require.Equal(t, []string{filepath.Join(f.dir, "out", "bio_1.txt")}, result.Files)
	data, err := os.ReadFile(result.Files[0])
	require.NoError(t, err)
	assert.Equal(t, fill, string(data))
}

func TestRun_ProgressFollowsGraph(t *testing.T) {
	f := newFixture(t, scripted(), nil, nil)

	_, err := f.orch.Run(context.Background(), contexts.Run{
		Name:    "bio",
		Entries: []types.Entry{{Description: "skills", Path: f.path("skills.txt")}},
	})
	require.NoError(t, err)

	var order []string
	for _, e := range f.events {
		if len(order) == 0 || order[len(order)-1] != e.Step {
			order = append(order, e.Step)
		}
		assert.Equal(t, "bio", e.RunID)
	}
	assert.Equal(t, []string{steps.Preprocess, steps.Tag, steps.Fill}, order)
}

func TestRun_WebFallbackYieldsContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html><body><main><p>Built payment platforms for five years.</p></main></body></html>`))
	}))
	defer server.Close()

	web := fetch.NewWebFetcher(nil, fetch.WithRenderer(failingRenderer{}))
	f := newFixture(t, scripted(), web, nil)

	result, err := f.orch.Run(context.Background(), contexts.Run{
		Name:    "web",
		Entries: []types.Entry{{Description: "experience", Path: server.URL}},
	})
	require.NoError(t, err)

	cleans := f.client.Calls("clean")
	require.Len(t, cleans, 1)
	assert.Contains(t, cleans[0].Prompt.User, "Built payment platforms for five years.")
	require.Len(t, result.Contexts, 1)
	assert.True(t, result.Contexts[0].HasContent())
}

type failingRenderer struct{}

func (failingRenderer) Render(context.Context, string) (string, error) {
	return "", errors.New("renderer unavailable")
}

func TestRun_MalformedDeclarationFailsBeforeFetch(t *testing.T) {
	f := newFixture(t, scripted(), nil, nil)

	_, err := f.orch.Run(context.Background(), contexts.Run{
		Name:    "broken",
		Entries: []types.Entry{{Description: "onlyonefield"}},
	})

	var malformed *contexts.MalformedInputError
	require.ErrorAs(t, err, &malformed)
	var runErr *RunError
	require.ErrorAs(t, err, &runErr)
	assert.Equal(t, "broken", runErr.RunID)
	assert.Equal(t, "build", runErr.Stage)

	assert.Zero(t, f.resolver.calls.Load())
	assert.Zero(t, f.client.Count("clean"))
	assert.NoDirExists(t, filepath.Join(f.dir, "out"))
}

func TestRun_IsolatedSourceFailureStillProducesOutput(t *testing.T) {
	f := newFixture(t, scripted(), nil, nil)

	result, err := f.orch.Run(context.Background(), contexts.Run{
		Name: "partial",
		Entries: []types.Entry{
			{Description: "skills", Path: f.path("skills.txt")},
			{Description: "missing", Path: f.path("nowhere.txt")},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"skills"}, result.Contexts.Descriptions())
	assert.Equal(t, 1, f.client.Count("clean"))
	assert.Len(t, result.Files, 1)
}

func TestRun_SchemaViolationReportsStage(t *testing.T) {
	client := scripted().Reply("categorize", map[string]any{"descriptions": []string{}})
	f := newFixture(t, client, nil, nil)

	_, err := f.orch.Run(context.Background(), contexts.Run{
		Name:    "bio",
		Entries: []types.Entry{{Description: "skills", Path: f.path("skills.txt")}},
	})

	var runErr *RunError
	require.ErrorAs(t, err, &runErr)
	assert.Equal(t, string(refine.StageCategorize), runErr.Stage)
	var violation *llm.SchemaViolationError
	assert.ErrorAs(t, err, &violation)
	assert.NoDirExists(t, filepath.Join(f.dir, "out"))
}

func TestRun_FillFailureWritesNothing(t *testing.T) {
	client := scripted().Reply("fill", map[string]any{"fills": []string{"still has <insert skill>"}})
	f := newFixture(t, client, nil, nil)

	_, err := f.orch.Run(context.Background(), contexts.Run{
		Name:    "bio",
		Entries: []types.Entry{{Description: "skills", Path: f.path("skills.txt")}},
	})

	var runErr *RunError
	require.ErrorAs(t, err, &runErr)
	assert.Equal(t, steps.Fill, runErr.Stage)
	assert.NoFileExists(t, OutputPath(filepath.Join(f.dir, "out"), "bio", 1))
}

func TestRun_UnnamedRunGetsIdentifier(t *testing.T) {
	f := newFixture(t, scripted(), nil, func(o *Options) { o.Variants = 2 })

	result, err := f.orch.Run(context.Background(), contexts.Run{
		Entries: []types.Entry{{Description: "skills", Path: f.path("skills.txt")}},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, result.RunID)
	require.Len(t, result.Files, 2)
	assert.Equal(t, OutputPath(filepath.Join(f.dir, "out"), result.RunID, 2), result.Files[1])
}

func TestRun_InsufficientStillFills(t *testing.T) {
	client := scripted().Reply("tag", `{"candidates": []}`)
	f := newFixture(t, client, nil, nil)

	result, err := f.orch.Run(context.Background(), contexts.Run{
		Name:    "thin",
		Entries: []types.Entry{{Description: "skills", Path: f.path("skills.txt")}},
	})
	require.NoError(t, err)

	assert.Equal(t, templating.Insufficient, result.Decision)
	assert.Len(t, result.Fills, 1)
}

func TestRun_WritesRunLog(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "run.log")
	runLog, err := observability.OpenRunLog(logPath)
	require.NoError(t, err)

	f := newFixture(t, scripted(), nil, func(o *Options) { o.RunLog = runLog })
	_, err = f.orch.Run(context.Background(), contexts.Run{
		Name:    "bio",
		Entries: []types.Entry{{Description: "skills", Path: f.path("skills.txt")}},
	})
	require.NoError(t, err)
	require.NoError(t, runLog.Close())

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)

	var stages []string
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		var event struct {
			Stage string          `json:"stage"`
			Run   string          `json:"run"`
			Data  json.RawMessage `json:"data"`
		}
		require.NoError(t, json.Unmarshal([]byte(line), &event))
		assert.Equal(t, "bio", event.Run)
		stages = append(stages, event.Stage)

		if event.Stage == "build" {
			var built types.ContextCollection
			require.NoError(t, json.Unmarshal(event.Data, &built))
			require.Len(t, built, 1)
			assert.Len(t, built[0].SourceHash, 64)
		}
	}
	assert.Equal(t, []string{"build", "clean", "categorize", "summarize", "extract", "tag", "fill"}, stages)
}

func TestRunAll_FailureDoesNotAffectSiblings(t *testing.T) {
	client := scripted().On("fill", func(p llm.Prompt) (string, error) {
		if strings.Contains(p.User, "summary of hobbies") {
			return "", errors.New("provider overloaded")
		}
		return llmtest.JSON(map[string]any{"fills": []string{"I have 5 years building payment platforms."}}), nil
	})
	f := newFixture(t, client, nil, nil)

	runs := []contexts.Run{
		{Name: "good", Entries: []types.Entry{{Description: "skills", Path: f.path("skills.txt")}}},
		{Name: "bad", Entries: []types.Entry{{Description: "hobbies", Path: f.path("skills.txt")}}},
	}
	results, err := f.orch.RunAll(context.Background(), runs)

	require.Len(t, results, 2)
	require.NotNil(t, results[0])
	assert.Nil(t, results[1])
	assert.FileExists(t, OutputPath(filepath.Join(f.dir, "out"), "good", 1))
	assert.NoFileExists(t, OutputPath(filepath.Join(f.dir, "out"), "bad", 1))

	var runErr *RunError
	require.ErrorAs(t, err, &runErr)
	assert.Equal(t, "bad", runErr.RunID)
	assert.Equal(t, steps.Fill, runErr.Stage)
}

func TestRunAll_MalformedRunFailsAlone(t *testing.T) {
	f := newFixture(t, scripted(), nil, nil)

	runs := []contexts.Run{
		{Name: "bad", Entries: []types.Entry{{Description: "referral"}}},
		{Name: "good", Entries: []types.Entry{{Description: "skills", Path: f.path("skills.txt")}}},
	}
	results, err := f.orch.RunAll(context.Background(), runs)

	require.Len(t, results, 2)
	assert.Nil(t, results[0])
	require.NotNil(t, results[1])
	assert.FileExists(t, OutputPath(filepath.Join(f.dir, "out"), "good", 1))

	var runErr *RunError
	require.ErrorAs(t, err, &runErr)
	assert.Equal(t, "bad", runErr.RunID)
	assert.Equal(t, "build", runErr.Stage)
	var malformed *contexts.MalformedInputError
	assert.ErrorAs(t, err, &malformed)
}

func TestRunAll_SharesResolvedSources(t *testing.T) {
	f := newFixture(t, scripted(), nil, nil)

	shared := types.Entry{Description: "skills", Path: f.path("skills.txt")}
	runs := []contexts.Run{
		{Name: "a", Entries: []types.Entry{shared}},
		{Name: "b", Entries: []types.Entry{shared}},
	}
	_, err := f.orch.RunAll(context.Background(), runs)
	require.NoError(t, err)

	assert.Equal(t, int32(1), f.resolver.calls.Load())
}

func TestNew_RejectsUnimplementedRoute(t *testing.T) {
	invoker := llm.NewInvoker(scripted(), nil)
	tmpl, err := types.NewTemplate(sentence, "", angle)
	require.NoError(t, err)

	g := steps.DefaultGraph().Route(steps.Tag, steps.DecisionInsufficient, steps.Gather)
	_, err = New(contexts.NewStore(nil), refine.New(invoker), templating.New(invoker), Options{
		Template: *tmpl,
		Graph:    &g,
	})
	assert.ErrorIs(t, err, steps.ErrNotImplemented)
}

func TestNew_RejectsInvalidInputs(t *testing.T) {
	invoker := llm.NewInvoker(scripted(), nil)
	engine := templating.New(invoker)
	tmpl, err := types.NewTemplate(sentence, "", angle)
	require.NoError(t, err)

	_, err = New(contexts.NewStore(nil), refine.New(invoker), engine, Options{Template: *tmpl, Variants: -1})
	assert.ErrorIs(t, err, templating.ErrInvalidVariants)

	_, err = New(contexts.NewStore(nil), refine.New(invoker), engine, Options{Template: types.Template{Metadata: types.TemplateMetadata{Brackets: angle}}})
	assert.ErrorIs(t, err, templating.ErrInvalidTemplate)
}
