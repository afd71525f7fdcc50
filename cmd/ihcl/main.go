// Package main provides the ihcl command line: build context collections from
// declared sources and fill text templates from them.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "ihcl",
	Short: "Fill text templates from your own context sources",
	Long: `ihcl ingests context sources (text, PDF, Word documents and web pages), refines them
into one summary per topic, and fills the bracketed placeholders of a template with
material drawn from that context.`,
	SilenceUsage: true,
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
