package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jmin-pingu/ihcl/internal/config"
	"github.com/jmin-pingu/ihcl/internal/contexts"
	"github.com/jmin-pingu/ihcl/internal/observability"
	"github.com/jmin-pingu/ihcl/internal/types"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest CONTEXTS",
	Short: "Build the raw context collection for every run of a declaration",
	Long:  "Fetch and parse every declared source without any inference, and print one collection per run.",
	Args:  cobra.ExactArgs(1),
	RunE:  runIngest,
}

var (
	ingestDelimiter   string
	ingestConcurrency int
	ingestPolicy      string
	ingestUseBrowser  bool
	ingestJSON        bool
	ingestVerbose     bool
)

func init() {
	ingestCmd.Flags().StringVarP(&ingestDelimiter, "delim", "d", contexts.DefaultDelimiter, "Field delimiter for delimited declaration files")
	ingestCmd.Flags().IntVar(&ingestConcurrency, "concurrency", contexts.DefaultConcurrency, "Parallel source fetches")
	ingestCmd.Flags().StringVar(&ingestPolicy, "policy", string(contexts.PolicyIsolate), "Source failure policy: isolate or fail")
	ingestCmd.Flags().BoolVar(&ingestUseBrowser, "use-browser", false, "Render web sources in a headless browser (requires Chrome)")
	ingestCmd.Flags().BoolVar(&ingestJSON, "json", false, "Print collections as JSON")
	ingestCmd.Flags().BoolVarP(&ingestVerbose, "verbose", "v", false, "Print detailed debug information")

	rootCmd.AddCommand(ingestCmd)
}

// runCollection is the JSON shape printed by ingest --json.
type runCollection struct {
	Run      string                  `json:"run"`
	Contexts types.ContextCollection `json:"contexts"`
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg := config.Config{
		Contexts:      args[0],
		Delimiter:     ingestDelimiter,
		Concurrency:   ingestConcurrency,
		FailurePolicy: ingestPolicy,
		UseBrowser:    ingestUseBrowser,
		Verbose:       ingestVerbose,
	}
	cfg = cfg.MergeWithDefaults(config.Defaults())
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := zap.NewNop()
	if cfg.Verbose {
		var err error
		if logger, err = observability.NewLogger(true); err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}
		defer func() { _ = logger.Sync() }()
	}

	decl, err := contexts.LoadDeclaration(cfg.Contexts, cfg.Delimiter)
	if err != nil {
		return err
	}

	ctx := context.Background()
	store := newStore(cfg, logger)
	out := cmd.OutOrStdout()
	printer := observability.NewPrinter(out)

	var collections []runCollection
	for _, run := range decl.Runs() {
		collection, err := store.Build(ctx, run.Entries)
		if err != nil {
			return fmt.Errorf("run %s: %w", run.Name, err)
		}
		if ingestJSON {
			collections = append(collections, runCollection{Run: run.Name, Contexts: collection})
			continue
		}
		printer.PrintContexts(fmt.Sprintf("CONTEXTS (%s)", run.Name), collection)
	}

	if ingestJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(collections)
	}
	return nil
}
