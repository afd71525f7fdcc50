package templating

import (
	"strings"

	"github.com/jmin-pingu/ihcl/internal/types"
)

// Span is one placeholder occurrence in a template.
type Span struct {
	// Text is the literal content between the delimiters.
	Text string
	// Start and End are byte offsets of the whole span, delimiters included.
	Start int
	End   int
}

// Spans lists every left...right span in content, in order. Spans do not nest;
// an unmatched left delimiter ends the scan.
func Spans(content string, brackets types.Brackets) []Span {
	left, right := brackets.Left(), brackets.Right()
	if left == "" || right == "" {
		return nil
	}

	var spans []Span
	offset := 0
	for offset < len(content) {
		open := strings.Index(content[offset:], left)
		if open < 0 {
			break
		}
		start := offset + open
		inner := start + len(left)
		closeAt := strings.Index(content[inner:], right)
		if closeAt < 0 {
			break
		}
		end := inner + closeAt + len(right)
		spans = append(spans, Span{
			Text:  content[inner : inner+closeAt],
			Start: start,
			End:   end,
		})
		offset = end
	}
	return spans
}

// Phrases returns the text of every span in content.
func Phrases(content string, brackets types.Brackets) []string {
	spans := Spans(content, brackets)
	out := make([]string, len(spans))
	for i, s := range spans {
		out[i] = s.Text
	}
	return out
}
