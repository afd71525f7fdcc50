// Package types provides type definitions for structured data used throughout the ihcl system.
//
//nolint:revive // types is a standard Go package name pattern
package types

import "strings"

// SourceType classifies the format a context source was parsed from
type SourceType string

const (
	// SourcePlainText is a plain text file (.txt)
	SourcePlainText SourceType = "plain_text"
	// SourcePDF is a PDF document (.pdf)
	SourcePDF SourceType = "pdf"
	// SourceWordDocument is a word-processor document (.docx)
	SourceWordDocument SourceType = "word_document"
	// SourceWebPage is an http or https URL
	SourceWebPage SourceType = "web_page"
	// SourceUnknown is any other path; it is still parsed as plain text
	SourceUnknown SourceType = "unknown"
)

// Status tracks how far a record has moved through refinement.
// Processed is kept alongside it and is true only for StatusRefined.
type Status string

const (
	StatusRaw     Status = "raw"
	StatusCleaned Status = "cleaned"
	StatusRefined Status = "refined"
)

// Entry is one (description, path) pair from a context declaration
type Entry struct {
	Description string `json:"description" yaml:"description" toml:"description"`
	Path        string `json:"path" yaml:"path" toml:"path"`
}

// ContextRecord is one normalized unit of source text plus its semantic label
type ContextRecord struct {
	Description string     `json:"description"`
	Content     *string    `json:"content"` // nil when the record was dropped
	SourceType  SourceType `json:"source_type"`
	Path        string     `json:"path,omitempty"`
	Processed   bool       `json:"processed"`
	Status      Status     `json:"status,omitempty"`
	// SourceHash is the SHA256 of the resolved source text; empty for merged records.
	SourceHash string `json:"source_hash,omitempty"`
	// Site is the detected site family of a web source.
	Site string `json:"site,omitempty"`
}

// NewContextRecord builds a raw record holding text
func NewContextRecord(description, path string, sourceType SourceType, text string) ContextRecord {
	return ContextRecord{
		Description: description,
		Content:     StringPtr(text),
		SourceType:  sourceType,
		Path:        path,
		Status:      StatusRaw,
	}
}

// HasContent reports whether the record carries non-empty text
func (r ContextRecord) HasContent() bool {
	return r.Content != nil && strings.TrimSpace(*r.Content) != ""
}

// Text returns the content or an empty string for dropped records
func (r ContextRecord) Text() string {
	if r.Content == nil {
		return ""
	}
	return *r.Content
}

// Clone returns a deep copy so the content pointer is not shared
func (r ContextRecord) Clone() ContextRecord {
	out := r
	if r.Content != nil {
		out.Content = StringPtr(*r.Content)
	}
	return out
}

// MarkCleaned records that the clean stage has run on the record
func (r *ContextRecord) MarkCleaned() {
	r.Processed = false
	r.Status = StatusCleaned
}

// MarkRefined records that the record was produced by summarization
func (r *ContextRecord) MarkRefined() {
	r.Processed = true
	r.Status = StatusRefined
}

// ContextCollection is the ordered set of records for one unit of work
type ContextCollection []ContextRecord

// Clone deep-copies the collection
func (c ContextCollection) Clone() ContextCollection {
	if c == nil {
		return nil
	}
	out := make(ContextCollection, len(c))
	for i, r := range c {
		out[i] = r.Clone()
	}
	return out
}

// Descriptions returns every record's description in collection order
func (c ContextCollection) Descriptions() []string {
	out := make([]string, len(c))
	for i, r := range c {
		out[i] = r.Description
	}
	return out
}

// WithContent returns only records that still carry non-blank content
func (c ContextCollection) WithContent() ContextCollection {
	out := make(ContextCollection, 0, len(c))
	for _, r := range c {
		if r.HasContent() {
			out = append(out, r)
		}
	}
	return out
}

// DescriptionGroup holds every record sharing one description
type DescriptionGroup struct {
	Description string
	Records     ContextCollection
}

// GroupByDescription groups records with content by description.
// Groups appear in first-seen order; records with nil content are skipped.
func (c ContextCollection) GroupByDescription() []DescriptionGroup {
	index := make(map[string]int)
	var groups []DescriptionGroup
	for _, r := range c {
		if r.Content == nil {
			continue
		}
		i, ok := index[r.Description]
		if !ok {
			i = len(groups)
			index[r.Description] = i
			groups = append(groups, DescriptionGroup{Description: r.Description})
		}
		groups[i].Records = append(groups[i].Records, r)
	}
	return groups
}

// StringPtr returns a pointer to s
func StringPtr(s string) *string {
	return &s
}
