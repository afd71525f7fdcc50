package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jmin-pingu/ihcl/internal/observability"
	"github.com/jmin-pingu/ihcl/internal/templating"
	"github.com/jmin-pingu/ihcl/internal/types"
)

var placeholdersCmd = &cobra.Command{
	Use:   "placeholders TEMPLATE LEFT RIGHT",
	Short: "List the placeholder spans of a template",
	Long:  "Scan a template for LEFT...RIGHT spans without any inference and print the text inside each.",
	Args:  cobra.ExactArgs(3),
	RunE:  runPlaceholders,
}

func init() {
	rootCmd.AddCommand(placeholdersCmd)
}

func runPlaceholders(cmd *cobra.Command, args []string) error {
	brackets := types.Brackets{args[1], args[2]}
	if err := brackets.Validate(); err != nil {
		return err
	}

	content, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read template %s: %w", args[0], err)
	}

	observability.NewPrinter(cmd.OutOrStdout()).PrintPlaceholders(templating.Phrases(string(content), brackets))
	return nil
}
