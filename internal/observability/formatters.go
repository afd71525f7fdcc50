// Package observability provides logging, the run log sink and formatted output for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/jmin-pingu/ihcl/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	lines := strings.Split(content, "\n")
	for _, line := range lines {
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, truncate(line, boxWidth-4))
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// truncate shortens s to at most n runes, marking the cut with "...".
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// firstLine returns the first non-blank line of s.
func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) != "" {
			return strings.TrimSpace(line)
		}
	}
	return ""
}

// PrintContexts outputs a summary of a context collection.
func (p *Printer) PrintContexts(title string, records types.ContextCollection) {
	if len(records) == 0 {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Records: %d\n\n", len(records)))

	count := min(len(records), maxItemsToShow)
	for i := 0; i < count; i++ {
		r := records[i]
		if r.Site != "" {
			sb.WriteString(fmt.Sprintf("• %s [%s, %s]\n", r.Description, r.SourceType, r.Site))
		} else {
			sb.WriteString(fmt.Sprintf("• %s [%s]\n", r.Description, r.SourceType))
		}
		if r.Path != "" {
			sb.WriteString(fmt.Sprintf("  %s\n", truncate(r.Path, 50)))
		}
		if r.HasContent() {
			sb.WriteString(fmt.Sprintf("  %s\n", truncate(firstLine(r.Text()), 50)))
		} else {
			sb.WriteString("  (no content)\n")
		}
		if i < count-1 {
			sb.WriteString("\n")
		}
	}

	if len(records) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("\n... and %d more records", len(records)-maxItemsToShow))
	}

	p.printBox(title, sb.String())
}

// PrintCandidates outputs the substitution candidates gathered for a template.
func (p *Printer) PrintCandidates(tmpl types.Template) {
	candidates := tmpl.Metadata.SubstitutionCandidates
	if len(candidates) == 0 {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Placeholders: %d\n\n", len(candidates)))

	for i, c := range candidates {
		sb.WriteString(fmt.Sprintf("%s%s%s\n", tmpl.Metadata.Brackets.Left(), c.TargetPhrase, tmpl.Metadata.Brackets.Right()))
		if len(c.CandidateReplacements) == 0 {
			sb.WriteString("  ⚠ no related material\n")
		}
		count := min(len(c.CandidateReplacements), maxItemsToShow)
		for j := 0; j < count; j++ {
			sb.WriteString(fmt.Sprintf("  → %s\n", truncate(c.CandidateReplacements[j], 50)))
		}
		if len(c.CandidateReplacements) > maxItemsToShow {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(c.CandidateReplacements)-maxItemsToShow))
		}
		if i < len(candidates)-1 {
			sb.WriteString("\n")
		}
	}

	p.printBox("SUBSTITUTION CANDIDATES", sb.String())
}

// PrintFills outputs the filled templates produced by one run.
func (p *Printer) PrintFills(runID string, fills []string) {
	if len(fills) == 0 {
		return
	}

	var sb strings.Builder
	for i, fill := range fills {
		sb.WriteString(fmt.Sprintf("#%d\n", i+1))
		for _, line := range strings.Split(strings.TrimSpace(fill), "\n") {
			sb.WriteString(fmt.Sprintf("  %s\n", line))
		}
		if i < len(fills)-1 {
			sb.WriteString("\n")
		}
	}

	p.printBox(fmt.Sprintf("FILLED TEMPLATES (%s)", runID), strings.TrimRight(sb.String(), "\n"))
}

// PrintPlaceholders outputs the placeholder phrases found in a template.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintPlaceholders(phrases []string) {
	if len(phrases) == 0 {
		fmt.Fprintf(p.out, "┌%s┐\n", strings.Repeat("─", boxWidth-2))
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, "⚠ NO PLACEHOLDERS FOUND")
		fmt.Fprintf(p.out, "└%s┘\n", strings.Repeat("─", boxWidth-2))
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found %d placeholders:\n\n", len(phrases)))
	for i, phrase := range phrases {
		sb.WriteString(fmt.Sprintf("%d. %s", i+1, phrase))
		if i < len(phrases)-1 {
			sb.WriteString("\n")
		}
	}

	p.printBox("PLACEHOLDERS", sb.String())
}
