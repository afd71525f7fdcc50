package types

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// DefaultVariants is the number of filled templates produced per run
const DefaultVariants = 3

// ErrInvalidBrackets is returned when a delimiter pair is empty or not distinct
var ErrInvalidBrackets = errors.New("brackets must be two non-empty, distinct strings")

// Brackets is the left and right delimiter pair marking placeholder spans
type Brackets [2]string

// Left returns the opening delimiter
func (b Brackets) Left() string { return b[0] }

// Right returns the closing delimiter
func (b Brackets) Right() string { return b[1] }

// Validate checks that both delimiters are non-empty and distinct
func (b Brackets) Validate() error {
	if b[0] == "" || b[1] == "" || b[0] == b[1] {
		return fmt.Errorf("%w: got (%q, %q)", ErrInvalidBrackets, b[0], b[1])
	}
	return nil
}

// Contained reports whether either delimiter occurs in s
func (b Brackets) Contained(s string) bool {
	return strings.Contains(s, b[0]) || strings.Contains(s, b[1])
}

// SubstitutionCandidate is a placeholder's target phrase plus the material gathered for it
type SubstitutionCandidate struct {
	TargetPhrase          string   `json:"target_phrase"`
	CandidateReplacements []string `json:"candidate_replacements"`
}

// TemplateMetadata is owned and mutated by the template engine
type TemplateMetadata struct {
	SubstitutionCandidates []SubstitutionCandidate `json:"substitution_candidates"`
	Brackets               Brackets                `json:"brackets"`
}

// Template is the target document containing placeholder spans
type Template struct {
	Content     string           `json:"content" validate:"required"`
	Description string           `json:"description"`
	Metadata    TemplateMetadata `json:"metadata"`
}

// NewTemplate builds a template with the given delimiter pair
func NewTemplate(content, description string, brackets Brackets) (*Template, error) {
	if err := brackets.Validate(); err != nil {
		return nil, err
	}
	return &Template{
		Content:     content,
		Description: description,
		Metadata:    TemplateMetadata{Brackets: brackets},
	}, nil
}

// Clone copies the template including its candidate slices
func (t Template) Clone() Template {
	out := t
	if t.Metadata.SubstitutionCandidates != nil {
		out.Metadata.SubstitutionCandidates = make([]SubstitutionCandidate, len(t.Metadata.SubstitutionCandidates))
		for i, c := range t.Metadata.SubstitutionCandidates {
			out.Metadata.SubstitutionCandidates[i] = SubstitutionCandidate{
				TargetPhrase:          c.TargetPhrase,
				CandidateReplacements: slices.Clone(c.CandidateReplacements),
			}
		}
	}
	return out
}
