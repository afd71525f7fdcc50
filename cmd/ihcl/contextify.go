package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jmin-pingu/ihcl/internal/config"
	"github.com/jmin-pingu/ihcl/internal/contexts"
	"github.com/jmin-pingu/ihcl/internal/llm"
	"github.com/jmin-pingu/ihcl/internal/observability"
	"github.com/jmin-pingu/ihcl/internal/pipeline"
	"github.com/jmin-pingu/ihcl/internal/refine"
	"github.com/jmin-pingu/ihcl/internal/templating"
	"github.com/jmin-pingu/ihcl/internal/types"
)

var contextifyCmd = &cobra.Command{
	Use:   "contextify [CONTEXTS TEMPLATE LEFT RIGHT]",
	Short: "Fill a template from a declaration of context sources",
	Long: `Builds one context collection per run from the declaration file, refines it
(clean -> categorize -> summarize), tags every placeholder of the template with related
material and writes the filled templates to <out>/<run>_<n>.txt.

Configuration can be loaded from a JSON file using --config. Arguments and flags override config file values.`,
	Args: cobra.MaximumNArgs(4),
	RunE: runContextify,
}

var (
	ctxConfigPath  string
	ctxDelimiter   string
	ctxDescription string
	ctxVariants    int
	ctxConcurrency int
	ctxPolicy      string
	ctxOutDir      string
	ctxLogFile     string
	ctxAPIKey      string
	ctxRPS         float64
	ctxUseBrowser  bool
	ctxVerbose     bool
)

func init() {
	// Config file flag (processed first)
	contextifyCmd.Flags().StringVar(&ctxConfigPath, "config", "", "Path to config.json file (values can be overridden by other flags)")

	contextifyCmd.Flags().StringVarP(&ctxDelimiter, "delim", "d", contexts.DefaultDelimiter, "Field delimiter for delimited declaration files")
	contextifyCmd.Flags().StringVar(&ctxDescription, "description", "", "What the template is for")
	contextifyCmd.Flags().IntVarP(&ctxVariants, "variants", "n", types.DefaultVariants, "Filled templates per run")
	contextifyCmd.Flags().IntVar(&ctxConcurrency, "concurrency", contexts.DefaultConcurrency, "Parallel source fetches and inference calls per stage")
	contextifyCmd.Flags().StringVar(&ctxPolicy, "policy", string(contexts.PolicyIsolate), "Source failure policy: isolate or fail")
	contextifyCmd.Flags().StringVarP(&ctxOutDir, "out", "o", "out", "Output directory")
	contextifyCmd.Flags().StringVar(&ctxLogFile, "log-file", "", "Run log file (truncated on every invocation)")
	contextifyCmd.Flags().Float64Var(&ctxRPS, "rps", 0, "Inference requests per second (0 disables limiting)")
	contextifyCmd.Flags().BoolVar(&ctxUseBrowser, "use-browser", false, "Render web sources in a headless browser (requires Chrome)")
	contextifyCmd.Flags().BoolVarP(&ctxVerbose, "verbose", "v", false, "Print detailed debug information")

	// API key can be passed as a flag, or read from env var GEMINI_API_KEY
	contextifyCmd.Flags().StringVar(&ctxAPIKey, "api-key", "", "Gemini API Key (optional, defaults to GEMINI_API_KEY env var)")

	rootCmd.AddCommand(contextifyCmd)
}

// contextifyOverrides applies positional arguments and explicitly-set flags.
func contextifyOverrides(cmd *cobra.Command, args []string) func(*config.Config) {
	return func(cfg *config.Config) {
		if len(args) > 0 {
			cfg.Contexts = args[0]
		}
		if len(args) > 1 {
			cfg.Template = args[1]
		}
		if len(args) == 4 {
			cfg.Brackets = []string{args[2], args[3]}
		}

		flags := cmd.Flags()
		if flags.Changed("delim") {
			cfg.Delimiter = ctxDelimiter
		}
		if flags.Changed("description") {
			cfg.TemplateDescription = ctxDescription
		}
		if flags.Changed("variants") {
			cfg.Variants = ctxVariants
		}
		if flags.Changed("concurrency") {
			cfg.Concurrency = ctxConcurrency
		}
		if flags.Changed("policy") {
			cfg.FailurePolicy = ctxPolicy
		}
		if flags.Changed("out") {
			cfg.OutDir = ctxOutDir
		}
		if flags.Changed("log-file") {
			cfg.LogFile = ctxLogFile
		}
		if flags.Changed("api-key") {
			cfg.APIKey = ctxAPIKey
		}
		if flags.Changed("rps") {
			cfg.RequestsPerSecond = ctxRPS
		}
		if flags.Changed("use-browser") {
			cfg.UseBrowser = ctxUseBrowser
		}
		if flags.Changed("verbose") {
			cfg.Verbose = ctxVerbose
		}
	}
}

func runContextify(cmd *cobra.Command, args []string) error {
	if len(args) == 3 {
		return fmt.Errorf("brackets need both LEFT and RIGHT")
	}

	cfg, err := loadConfig(ctxConfigPath, contextifyOverrides(cmd, args))
	if err != nil {
		return err
	}
	if err := cfg.RequireRun(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	logger, err := observability.NewLogger(cfg.Verbose)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	out := cmd.OutOrStdout()

	// Step 1: Declaration and template
	_, _ = fmt.Fprintf(out, "Step 1/4: Loading declaration %s...\n", cfg.Contexts)
	decl, err := contexts.LoadDeclaration(cfg.Contexts, cfg.Delimiter)
	if err != nil {
		return err
	}
	runs := decl.Runs()

	content, err := os.ReadFile(cfg.Template)
	if err != nil {
		return fmt.Errorf("failed to read template %s: %w", cfg.Template, err)
	}
	tmpl, err := types.NewTemplate(string(content), cfg.TemplateDescription, cfg.BracketPair())
	if err != nil {
		return err
	}

	// Step 2: Inference client
	_, _ = fmt.Fprintf(out, "Step 2/4: Connecting to inference provider...\n")
	models, err := cfg.ModelConfig()
	if err != nil {
		return err
	}
	client, err := llm.NewClient(ctx, models, cfg.APIKey)
	if err != nil {
		return fmt.Errorf("failed to create LLM client: %w", err)
	}
	defer func() { _ = client.Close() }()
	client = llm.NewRateLimitedClient(client, cfg.RequestsPerSecond, cfg.Concurrency)
	invoker := llm.NewInvoker(client, logger)

	var runLog *observability.RunLog
	if cfg.LogFile != "" {
		runLog, err = observability.OpenRunLog(cfg.LogFile)
		if err != nil {
			return err
		}
		defer func() { _ = runLog.Close() }()
	}

	var printer *observability.Printer
	if cfg.Verbose {
		printer = observability.NewPrinter(out)
	}

	orch, err := pipeline.New(
		newStore(cfg, logger),
		refine.New(invoker, refine.WithConcurrency(cfg.Concurrency), refine.WithLogger(logger)),
		templating.New(invoker, templating.WithConcurrency(cfg.Concurrency), templating.WithLogger(logger)),
		pipeline.Options{
			Template: *tmpl,
			Variants: cfg.Variants,
			OutDir:   cfg.OutDir,
			RunLog:   runLog,
			Printer:  printer,
			Logger:   logger,
			OnProgress: func(e pipeline.ProgressEvent) {
				logger.Info(e.Message, zap.String("run", e.RunID), zap.String("step", e.Step))
			},
		})
	if err != nil {
		return err
	}

	// Step 3: Runs
	_, _ = fmt.Fprintf(out, "Step 3/4: Running %d run(s)...\n", len(runs))
	results, runErr := orch.RunAll(ctx, runs)

	// Step 4: Summary
	_, _ = fmt.Fprintf(out, "Step 4/4: Summary\n")
	failed := 0
	for i, result := range results {
		if result == nil {
			failed++
			_, _ = fmt.Fprintf(out, "  ✗ %s\n", runs[i].Name)
			continue
		}
		_, _ = fmt.Fprintf(out, "  ✓ %s (%s)\n", result.RunID, result.Decision)
		for _, file := range result.Files {
			_, _ = fmt.Fprintf(out, "      %s\n", file)
		}
	}

	if runErr != nil {
		for _, err := range unwrapJoined(runErr) {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "  %v\n", err)
		}
		return fmt.Errorf("%d of %d runs failed", failed, len(runs))
	}
	_, _ = fmt.Fprintf(out, "Done! %d run(s) written to %s\n", len(results), cfg.OutDir)
	return nil
}

// unwrapJoined flattens an errors.Join result.
func unwrapJoined(err error) []error {
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		return joined.Unwrap()
	}
	return []error{err}
}
